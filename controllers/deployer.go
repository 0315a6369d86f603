package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
	"github.com/olowe/batchmint-4337/userop"
)

// Deployer 控制器使用的流水线接口，*pipeline.Deployer 直接满足
type Deployer interface {
	Owner() common.Address
	Deploy(ctx context.Context, tokens []models.TokenParam, onStage pipeline.StageFunc) (*pipeline.Result, error)
	Relay(ctx context.Context, op userop.UserOperation, onStage pipeline.StageFunc) (*pipeline.Result, error)
	Account(ctx context.Context) (*pipeline.AccountInfo, error)
	Tokens(ctx context.Context) ([]models.DeployedToken, error)
}

var _ Deployer = (*pipeline.Deployer)(nil)

// statusFor 把流水线错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pipeline.ErrAttemptInFlight):
		return http.StatusConflict
	case pipeline.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case pipeline.KindOf(err) == pipeline.KindConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
