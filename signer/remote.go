package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// userRejectedCode EIP-1193 中用户拒绝请求的错误码
const userRejectedCode = 4001

// RemoteSigner 通过 JSON-RPC (eth_signTypedData_v4 / eth_signTransaction) 调用外部签名服务
type RemoteSigner struct {
	client  *rpc.Client
	address common.Address
}

// DialRemoteSigner 连接外部签名服务
func DialRemoteSigner(ctx context.Context, endpoint string, address common.Address) (*RemoteSigner, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewRemoteSigner(client, address), nil
}

// NewRemoteSigner 使用已有的 rpc 客户端
func NewRemoteSigner(client *rpc.Client, address common.Address) *RemoteSigner {
	return &RemoteSigner{client: client, address: address}
}

// Address 签名者地址
func (s *RemoteSigner) Address() common.Address {
	return s.address
}

// SignTypedData eth_signTypedData_v4
func (s *RemoteSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	var sig hexutil.Bytes
	if err := s.client.CallContext(ctx, &sig, "eth_signTypedData_v4", s.address, td); err != nil {
		return nil, classify(err)
	}
	return sig, nil
}

// signTransactionResult geth 风格的 eth_signTransaction 返回值
type signTransactionResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// SignTx eth_signTransaction，兼容返回原始十六进制串或 {raw, tx} 对象
func (s *RemoteSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	args := map[string]interface{}{
		"from":                 s.address,
		"to":                   tx.To(),
		"gas":                  hexutil.Uint64(tx.Gas()),
		"maxFeePerGas":         (*hexutil.Big)(tx.GasFeeCap()),
		"maxPriorityFeePerGas": (*hexutil.Big)(tx.GasTipCap()),
		"value":                (*hexutil.Big)(tx.Value()),
		"nonce":                hexutil.Uint64(tx.Nonce()),
		"data":                 hexutil.Bytes(tx.Data()),
		"chainId":              (*hexutil.Big)(chainID),
	}

	var raw json.RawMessage
	if err := s.client.CallContext(ctx, &raw, "eth_signTransaction", args); err != nil {
		return nil, classify(err)
	}

	var encoded hexutil.Bytes
	if err := json.Unmarshal(raw, &encoded); err != nil {
		var result signTransactionResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		encoded = result.Raw
	}

	var signed types.Transaction
	if err := signed.UnmarshalBinary(encoded); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &signed, nil
}

// Close 关闭连接
func (s *RemoteSigner) Close() {
	s.client.Close()
}

func classify(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return fmt.Errorf("%w: %s", ErrRejected, rpcErr.Error())
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
