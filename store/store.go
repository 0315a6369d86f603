// Package store 保存部署历史。
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

// DefaultListLimit List 的默认条数
const DefaultListLimit = 20

// MaxListLimit List 的最大条数
const MaxListLimit = 100

// Store 部署历史存储
type Store interface {
	Save(ctx context.Context, rec models.DeploymentRecord) error
	// List 按开始时间倒序返回 owner 的记录
	List(ctx context.Context, owner common.Address, limit int) ([]models.DeploymentRecord, error)
	Close(ctx context.Context) error
}

// FromResult 把流水线结果转换为历史记录
func FromResult(res *pipeline.Result) models.DeploymentRecord {
	rec := models.DeploymentRecord{
		ID:             res.ID.String(),
		ChainID:        res.ChainID,
		Owner:          res.Owner.Hex(),
		SmartAccount:   res.SmartAccount.Hex(),
		Status:         res.Outcome.Status,
		Error:          res.Outcome.Error,
		DeployedTokens: res.Outcome.DeployedTokens,
		SkippedTokens:  res.Outcome.SkippedTokens,
		Stages:         res.Stages,
		StartedAt:      res.StartedAt.UTC(),
		FinishedAt:     res.FinishedAt.UTC(),
	}
	if res.HandleOpsTx != (common.Hash{}) {
		rec.TransactionHash = res.HandleOpsTx.Hex()
	}
	if res.PrefundTx != (common.Hash{}) {
		rec.PrefundTxHash = res.PrefundTx.Hex()
	}
	if rec.DeployedTokens == nil {
		rec.DeployedTokens = []models.DeployedToken{}
	}
	if rec.SkippedTokens == nil {
		rec.SkippedTokens = []models.SkippedToken{}
	}
	return rec
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Nop 不保存任何记录
type Nop struct{}

func (Nop) Save(context.Context, models.DeploymentRecord) error { return nil }

func (Nop) List(context.Context, common.Address, int) ([]models.DeploymentRecord, error) {
	return []models.DeploymentRecord{}, nil
}

func (Nop) Close(context.Context) error { return nil }
