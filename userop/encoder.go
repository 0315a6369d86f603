// Package userop 构造 ERC-4337 PackedUserOperation 的各个字段。
package userop

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/olowe/batchmint-4337/contracts"
	"github.com/olowe/batchmint-4337/models"
)

// ErrValueOutOfRange 数值为负或超出字段宽度（gas 字段 uint128，其余 uint256）
var ErrValueOutOfRange = errors.New("value out of range")

// AccountSalt 每个 owner 只有一个确定性的智能账户
var AccountSalt = big.NewInt(0)

// BuildInitCode 账户未部署时返回 factory(20 字节) || createAccount(owner, salt)，
// 已部署时返回空字节。
func BuildInitCode(factory, owner common.Address, salt *big.Int, accountDeployed bool) ([]byte, error) {
	if accountDeployed {
		return []byte{}, nil
	}
	if salt == nil {
		salt = AccountSalt
	}
	createCalldata, err := contracts.SimpleAccountFactory.Pack("createAccount", owner, salt)
	if err != nil {
		return nil, fmt.Errorf("error packing createAccount: %w", err)
	}
	initCode := make([]byte, 0, common.AddressLength+len(createCalldata))
	initCode = append(initCode, factory.Bytes()...)
	initCode = append(initCode, createCalldata...)
	return initCode, nil
}

// BuildCallData 编码 deployTokens(params)，再包进智能账户的 execute(tokenFactory, 0, data)
func BuildCallData(tokenFactory common.Address, params []models.TokenParam) ([]byte, error) {
	deployCalldata, err := BuildDeployTokensCall(params)
	if err != nil {
		return nil, err
	}
	callData, err := contracts.SimpleAccount.Pack("execute", tokenFactory, big.NewInt(0), deployCalldata)
	if err != nil {
		return nil, fmt.Errorf("error packing execute: %w", err)
	}
	return callData, nil
}

// BuildDeployTokensCall 只编码 deployTokens(params)，用于 gas 估算
func BuildDeployTokensCall(params []models.TokenParam) ([]byte, error) {
	tuples := make([]contracts.TokenParam, len(params))
	for i, p := range params {
		supply := p.TotalSupply
		if supply == nil {
			supply = new(big.Int)
		}
		// abi 打包会对 uint256 取模而不报错
		if _, err := toUint256(supply); err != nil {
			return nil, fmt.Errorf("totalSupply of %s: %w", p.Symbol, err)
		}
		tuples[i] = contracts.TokenParam{Name: p.Name, Symbol: p.Symbol, TotalSupply: supply}
	}
	data, err := contracts.BatchMintTokenFactory.Pack("deployTokens", tuples)
	if err != nil {
		return nil, fmt.Errorf("error packing deployTokens: %w", err)
	}
	return data, nil
}

// PackGasLimits verificationGasLimit(高 16 字节) || callGasLimit(低 16 字节)
func PackGasLimits(verificationGasLimit, callGasLimit *big.Int) ([32]byte, error) {
	return packUint128Pair(verificationGasLimit, callGasLimit)
}

// PackGasFees maxPriorityFeePerGas(高 16 字节) || maxFeePerGas(低 16 字节)，顺序不可交换
func PackGasFees(maxPriorityFeePerGas, maxFeePerGas *big.Int) ([32]byte, error) {
	return packUint128Pair(maxPriorityFeePerGas, maxFeePerGas)
}

// UnpackGasLimits PackGasLimits 的逆操作
func UnpackGasLimits(packed [32]byte) (verificationGasLimit, callGasLimit *big.Int) {
	return unpackUint128Pair(packed)
}

// UnpackGasFees PackGasFees 的逆操作
func UnpackGasFees(packed [32]byte) (maxPriorityFeePerGas, maxFeePerGas *big.Int) {
	return unpackUint128Pair(packed)
}

func packUint128Pair(high, low *big.Int) ([32]byte, error) {
	var out [32]byte
	hi, err := toUint128(high)
	if err != nil {
		return out, fmt.Errorf("high half: %w", err)
	}
	lo, err := toUint128(low)
	if err != nil {
		return out, fmt.Errorf("low half: %w", err)
	}
	hb := hi.Bytes32()
	lb := lo.Bytes32()
	copy(out[:16], hb[16:])
	copy(out[16:], lb[16:])
	return out, nil
}

func toUint128(v *big.Int) (*uint256.Int, error) {
	u, err := toUint256(v)
	if err != nil {
		return nil, err
	}
	if u.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %s exceeds uint128", ErrValueOutOfRange, v)
	}
	return u, nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrValueOutOfRange, v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s exceeds uint256", ErrValueOutOfRange, v)
	}
	return u, nil
}

func unpackUint128Pair(packed [32]byte) (*big.Int, *big.Int) {
	return new(big.Int).SetBytes(packed[:16]), new(big.Int).SetBytes(packed[16:])
}
