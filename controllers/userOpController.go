package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
	"github.com/olowe/batchmint-4337/userop"
)

// UserOpController 转发外部已签名的 UserOperation
type UserOpController struct {
	deployer Deployer
	logger   zerolog.Logger
}

// NewUserOpController 创建一个新的 UserOpController 实例
func NewUserOpController(deployer Deployer, logger zerolog.Logger) *UserOpController {
	return &UserOpController{deployer: deployer, logger: logger}
}

// StoreUserOp 处理接收到的 UserOp 请求：校验字段后经 handleOps 提交并等待回执
func (ctrl *UserOpController) StoreUserOp(c *gin.Context) {
	var req models.PackedUserOperation

	// 绑定 JSON 请求体到 userOp 结构体
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorOutcome(err.Error()))
		return
	}

	// 验证和解码每个字段的十六进制字符串
	op, err := userop.FromModel(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorOutcome(err.Error()))
		return
	}
	if !op.Signed() {
		c.JSON(http.StatusBadRequest, models.ErrorOutcome(fmt.Sprintf("user operation from %s is not signed", op.Sender.Hex())))
		return
	}

	ctrl.logger.Debug().Str("sender", op.Sender.Hex()).Stringer("nonce", op.Nonce).Msg("received user operation")

	ctx := context.WithoutCancel(c.Request.Context())
	if wantsEventStream(c) {
		streamAttempt(c, func(onStage pipeline.StageFunc) (*pipeline.Result, error) {
			return ctrl.deployer.Relay(ctx, op, onStage)
		})
		return
	}

	res, err := ctrl.deployer.Relay(ctx, op, nil)
	c.JSON(statusFor(err), res.Outcome)
}
