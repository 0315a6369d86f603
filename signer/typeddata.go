package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/olowe/batchmint-4337/userop"
)

const (
	DomainName    = "ERC4337"
	DomainVersion = "1"
	PrimaryType   = "PackedUserOperation"
)

// packedUserOpTypes 字段顺序必须与 PackedUserOperation 一致，signature 不参与签名
var packedUserOpTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "sender", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "initCode", Type: "bytes"},
		{Name: "callData", Type: "bytes"},
		{Name: "accountGasLimits", Type: "bytes32"},
		{Name: "preVerificationGas", Type: "uint256"},
		{Name: "gasFees", Type: "bytes32"},
		{Name: "paymasterAndData", Type: "bytes"},
	},
}

// TypedData 构造 UserOperation 的 EIP-712 结构化数据，
// 域为 {name: "ERC4337", version: "1", chainId, verifyingContract: entryPoint}
func TypedData(op userop.UserOperation, chainID *big.Int, entryPoint common.Address) apitypes.TypedData {
	tuple := op.ABI()
	return apitypes.TypedData{
		Types:       packedUserOpTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: entryPoint.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sender":             tuple.Sender.Hex(),
			"nonce":              tuple.Nonce.String(),
			"initCode":           hexutil.Encode(tuple.InitCode),
			"callData":           hexutil.Encode(tuple.CallData),
			"accountGasLimits":   hexutil.Encode(tuple.AccountGasLimits[:]),
			"preVerificationGas": tuple.PreVerificationGas.String(),
			"gasFees":            hexutil.Encode(tuple.GasFees[:]),
			"paymasterAndData":   hexutil.Encode(tuple.PaymasterAndData),
		},
	}
}

// TypedDataHash EIP-712 摘要
func TypedDataHash(td apitypes.TypedData) (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}
