// Package pipeline 按固定顺序执行一次批量代币部署：
// 构建 UserOperation、签名、按需预存款、提交 handleOps 并解析回执。
package pipeline

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/models"
)

// StageFunc 每次阶段变化时调用，在执行流水线的 goroutine 中同步执行
type StageFunc func(stage models.TxStage)

// Observer 流水线的旁路观察者（指标、审计等）
type Observer interface {
	StageChanged(stage models.TxStage)
	AttemptFinished(res *Result)
}

// Result 一次尝试的结果。Err 非空时 Outcome.Status 为 error。
type Result struct {
	ID           uuid.UUID
	ChainID      uint64
	Owner        common.Address
	SmartAccount common.Address

	Outcome models.DeploymentOutcome
	Stages  []models.TxStage
	Err     error

	PrefundAmount *big.Int
	PrefundTx     common.Hash
	HandleOpsTx   common.Hash

	StartedAt  time.Time
	FinishedAt time.Time
}

// Stage 最终阶段
func (r *Result) Stage() models.TxStage {
	if len(r.Stages) == 0 {
		return models.StageIdle
	}
	return r.Stages[len(r.Stages)-1]
}

// Duration 尝试耗时
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// attempt 单次尝试独占的状态
type attempt struct {
	stage     models.TxStage
	result    *Result
	onStage   StageFunc
	observers []Observer
	logger    zerolog.Logger
}

func newAttempt(chainID uint64, onStage StageFunc, observers []Observer, logger zerolog.Logger) *attempt {
	id := uuid.New()
	a := &attempt{
		stage: models.StageIdle,
		result: &Result{
			ID:        id,
			ChainID:   chainID,
			Stages:    []models.TxStage{models.StageIdle},
			StartedAt: time.Now(),
		},
		onStage:   onStage,
		observers: observers,
		logger: logger.With().
			Str("attempt_id", id.String()).
			Uint64("chain_id", chainID).
			Logger(),
	}
	a.notify(models.StageIdle)
	return a
}

func (a *attempt) setSmartAccount(account common.Address) {
	a.result.SmartAccount = account
	a.logger = a.logger.With().Str("smart_account", account.Hex()).Logger()
}

// advance 只允许向前迁移
func (a *attempt) advance(next models.TxStage) error {
	if !a.stage.CanAdvanceTo(next) {
		return fmt.Errorf("invalid stage transition %s -> %s", a.stage, next)
	}
	a.stage = next
	a.result.Stages = append(a.result.Stages, next)
	a.logger.Info().Str("stage", string(next)).Msg("stage changed")
	a.notify(next)
	return nil
}

func (a *attempt) notify(stage models.TxStage) {
	if a.onStage != nil {
		a.onStage(stage)
	}
	for _, o := range a.observers {
		o.StageChanged(stage)
	}
}

// fail 进入 error 阶段并记录失败原因
func (a *attempt) fail(err error) *Result {
	kind := classify(a.stage, err)
	se := &StageError{Stage: a.stage, Kind: kind, Err: err}
	_ = a.advance(models.StageError)

	a.result.Err = se
	a.result.Outcome = models.ErrorOutcome(HumanMessage(se))
	a.logger.Error().Err(err).Str("kind", kind.String()).Str("failed_stage", string(se.Stage)).Msg("attempt failed")
	return a.finish()
}

// succeed 进入 success 阶段
func (a *attempt) succeed(outcome models.DeploymentOutcome) *Result {
	if err := a.advance(models.StageSuccess); err != nil {
		return a.fail(err)
	}
	a.result.Outcome = outcome
	a.logger.Info().
		Int("deployed", len(outcome.DeployedTokens)).
		Int("skipped", len(outcome.SkippedTokens)).
		Str("tx_hash", outcome.TransactionHash).
		Msg("attempt succeeded")
	return a.finish()
}

func (a *attempt) finish() *Result {
	a.result.FinishedAt = time.Now()
	for _, o := range a.observers {
		o.AttemptFinished(a.result)
	}
	return a.result
}
