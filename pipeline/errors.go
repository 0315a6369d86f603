package pipeline

import (
	"errors"
	"fmt"

	"github.com/olowe/batchmint-4337/chain"
	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/signer"
	"github.com/olowe/batchmint-4337/userop"
)

var (
	// ErrOperationNotAvailable 当前网络缺少合约地址或账户信息
	ErrOperationNotAvailable = errors.New("operation not available")
	// ErrAttemptInFlight 同一智能账户已有进行中的部署
	ErrAttemptInFlight = errors.New("a deployment is already in progress for this account")
	// ErrNoTokens 批量为空
	ErrNoTokens = errors.New("no tokens to deploy")
)

// fallbackMessage 无法给出更具体信息时的提示
const fallbackMessage = "Transaction failed"

// maxMessageLen 超过此长度的错误文本通常是节点或传输层的细节，不直接展示
const maxMessageLen = 160

// Kind 错误分类
type Kind int

const (
	KindConfiguration Kind = iota
	KindConflict
	KindSigning
	KindSimulation
	KindSubmission
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindSigning:
		return "signing"
	case KindSimulation:
		return "simulation"
	case KindSubmission:
		return "submission"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StageError 某个阶段失败
type StageError struct {
	Stage models.TxStage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// classify 按错误本身和所在阶段分类
func classify(stage models.TxStage, err error) Kind {
	switch {
	case errors.Is(err, ErrOperationNotAvailable), errors.Is(err, ErrNoTokens), errors.Is(err, userop.ErrValueOutOfRange):
		return KindConfiguration
	case errors.Is(err, ErrAttemptInFlight):
		return KindConflict
	case errors.Is(err, signer.ErrRejected), errors.Is(err, signer.ErrUnavailable):
		return KindSigning
	}
	switch stage {
	case models.StageSigning:
		return KindSigning
	case models.StageSimulatingPrefund, models.StageSimulatingHandleOps:
		return KindSimulation
	default:
		return KindSubmission
	}
}

// KindOf 返回错误分类；非 StageError 视为提交错误
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindSubmission
}

// HumanMessage 把错误转成展示给用户的简短信息：
// 优先合约回滚原因，其次最内层错误的文本，最后是通用提示。
func HumanMessage(err error) string {
	if err == nil {
		return ""
	}
	if reason, ok := chain.RevertReason(err); ok {
		return reason
	}

	var se *StageError
	if errors.As(err, &se) && se.Kind == KindConfiguration {
		if msg := se.Err.Error(); msg != "" && len(msg) <= maxMessageLen {
			return msg
		}
	}

	msg := innermost(err).Error()
	if msg == "" || len(msg) > maxMessageLen {
		return fallbackMessage
	}
	return msg
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
