package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// LocalSigner 使用本地私钥签名
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner 从十六进制私钥创建签名者
func NewLocalSigner(privateKey string) (*LocalSigner, error) {
	if privateKey == "" {
		return nil, ErrUnavailable
	}
	// 将私钥字符串转换为 ECDSA 私钥
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error converting private key: %w", err)
	}
	return NewLocalSignerFromKey(key), nil
}

// NewLocalSignerFromKey 直接使用已有的私钥
func NewLocalSignerFromKey(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address 签名者地址
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTypedData 签名 EIP-712 摘要，V 取 27/28
func (s *LocalSigner) SignTypedData(_ context.Context, td apitypes.TypedData) ([]byte, error) {
	digest, err := TypedDataHash(td)
	if err != nil {
		return nil, fmt.Errorf("error hashing typed data: %w", err)
	}
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("error signing typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignTx 签署交易
func (s *LocalSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
