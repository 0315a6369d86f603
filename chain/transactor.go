package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/olowe/batchmint-4337/gas"
)

// ErrTransactionReverted 交易已上链但执行失败
var ErrTransactionReverted = errors.New("transaction reverted on-chain")

// TxSigner 为 EOA 交易签名
type TxSigner interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Fees EOA 交易使用的 EIP-1559 费用
type Fees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Transactor 以 owner EOA 身份模拟、发送交易并等待上链
type Transactor struct {
	backend Backend
	signer  TxSigner
	chainID *big.Int
}

// NewTransactor 创建 Transactor
func NewTransactor(backend Backend, signer TxSigner, chainID *big.Int) *Transactor {
	return &Transactor{backend: backend, signer: signer, chainID: chainID}
}

// From 发送方地址
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Simulate 基于当前状态 eth_call，不广播。回滚时返回节点错误（包含回滚原因）。
func (t *Transactor) Simulate(ctx context.Context, c Call) error {
	_, err := t.backend.CallContract(ctx, t.callMsg(c), nil)
	return err
}

// Submit 估算 gas（加 30% 余量）、读取最新 nonce、签名并广播
func (t *Transactor) Submit(ctx context.Context, c Call, fees Fees) (*types.Transaction, error) {
	estimated, err := t.backend.EstimateGas(ctx, t.callMsg(c))
	if err != nil {
		return nil, fmt.Errorf("error estimating gas: %w", err)
	}
	gasLimit := gas.ApplyCushion(estimated)

	// 每次发送前重新读取，前一笔交易（如 prefund）已消耗的 nonce 会被计入
	nonce, err := t.backend.PendingNonceAt(ctx, t.From())
	if err != nil {
		return nil, fmt.Errorf("error getting nonce: %w", err)
	}

	value := c.Value
	if value == nil {
		value = new(big.Int)
	}
	to := c.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gasLimit.Uint64(),
		To:        &to,
		Value:     value,
		Data:      c.Data,
	})

	signedTx, err := t.signer.SignTx(ctx, tx, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("error signing transaction: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("error sending transaction: %w", err)
	}
	return signedTx, nil
}

// WaitMined 阻塞直到交易上链，不设超时（只受 ctx 控制）
func (t *Transactor) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("error waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func (t *Transactor) callMsg(c Call) ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{From: t.From(), To: &to, Value: c.Value, Data: c.Data}
}
