// Package signer 负责获取 UserOperation 的哈希并通过外部签名者生成授权签名。
package signer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/userop"
)

var (
	// ErrRejected 签名者拒绝签名（用户拒绝）
	ErrRejected = errors.New("signature request rejected")
	// ErrUnavailable 没有可用的签名者
	ErrUnavailable = errors.New("signer unavailable")
)

// Signer owner EOA 的签名者：结构化数据签名和交易签名
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// HashReader EntryPoint 的 getUserOpHash
type HashReader interface {
	Address() common.Address
	GetUserOpHash(ctx context.Context, op userop.UserOperation) (common.Hash, error)
}

// Coordinator 签名协调：链上取哈希，再交给签名者
type Coordinator struct {
	entryPoint HashReader
	signer     Signer
	chainID    *big.Int
	logger     zerolog.Logger
}

// NewCoordinator 创建签名协调器
func NewCoordinator(entryPoint HashReader, signer Signer, chainID *big.Int, logger zerolog.Logger) *Coordinator {
	return &Coordinator{entryPoint: entryPoint, signer: signer, chainID: chainID, logger: logger}
}

// OperationHash 未签名操作在 EntryPoint 上的哈希，只读调用
func (c *Coordinator) OperationHash(ctx context.Context, op userop.UserOperation) (common.Hash, error) {
	if op.Signed() {
		return common.Hash{}, fmt.Errorf("operation already carries a signature")
	}
	return c.entryPoint.GetUserOpHash(ctx, op)
}

// Sign 对操作的 EIP-712 结构化数据签名。
// 本地摘要与 EntryPoint 哈希不一致时（v0.8 之前的 EntryPoint）只记录警告。
func (c *Coordinator) Sign(ctx context.Context, op userop.UserOperation, hash common.Hash) ([]byte, error) {
	if c.signer == nil {
		return nil, ErrUnavailable
	}
	td := TypedData(op, c.chainID, c.entryPoint.Address())

	if digest, err := TypedDataHash(td); err != nil {
		return nil, fmt.Errorf("error hashing typed data: %w", err)
	} else if digest != hash {
		c.logger.Warn().
			Str("entry_point_hash", hash.Hex()).
			Str("typed_data_hash", digest.Hex()).
			Msg("entry point hash differs from EIP-712 digest")
	}

	sig, err := c.signer.SignTypedData(ctx, td)
	if err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrUnavailable)
	}
	return sig, nil
}
