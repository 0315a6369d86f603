package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

// saveTimeout 保存一条记录的超时
const saveTimeout = 10 * time.Second

// Recorder 在每次尝试结束时保存历史记录，实现 pipeline.Observer
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

var _ pipeline.Observer = (*Recorder)(nil)

// NewRecorder 创建 Recorder
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// StageChanged 不记录中间阶段
func (r *Recorder) StageChanged(models.TxStage) {}

// AttemptFinished 保存失败只记录日志，不影响结果
func (r *Recorder) AttemptFinished(res *pipeline.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.Save(ctx, FromResult(res)); err != nil {
		r.logger.Error().Err(err).Str("attempt_id", res.ID.String()).Msg("error saving deployment record")
	}
}
