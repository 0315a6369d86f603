package controllers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
	"github.com/olowe/batchmint-4337/store"
)

// DeploymentController 批量部署与部署历史
type DeploymentController struct {
	deployer Deployer
	store    store.Store
	logger   zerolog.Logger
}

// NewDeploymentController 创建一个新的 DeploymentController 实例
func NewDeploymentController(deployer Deployer, st store.Store, logger zerolog.Logger) *DeploymentController {
	if st == nil {
		st = store.Nop{}
	}
	return &DeploymentController{deployer: deployer, store: st, logger: logger}
}

// Deploy 处理 POST /deployments。
// Accept: text/event-stream 时以 SSE 推送每个阶段，最后推送 outcome。
func (ctrl *DeploymentController) Deploy(c *gin.Context) {
	var req models.DeployTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorOutcome(err.Error()))
		return
	}
	tokens, err := req.ToTokenParams()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorOutcome(err.Error()))
		return
	}

	// 客户端断开不会中断已经开始的链上流程
	ctx := context.WithoutCancel(c.Request.Context())

	if wantsEventStream(c) {
		streamAttempt(c, func(onStage pipeline.StageFunc) (*pipeline.Result, error) {
			return ctrl.deployer.Deploy(ctx, tokens, onStage)
		})
		return
	}

	res, err := ctrl.deployer.Deploy(ctx, tokens, nil)
	c.JSON(statusFor(err), res.Outcome)
}

// List 处理 GET /deployments?limit=
func (ctrl *DeploymentController) List(c *gin.Context) {
	limit := store.DefaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := ctrl.store.List(c.Request.Context(), ctrl.deployer.Owner(), limit)
	if err != nil {
		ctrl.logger.Error().Err(err).Msg("error listing deployments")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error listing deployments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployments": records})
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// attemptFunc 执行一次尝试，阶段变化通过 onStage 通知
type attemptFunc func(onStage pipeline.StageFunc) (*pipeline.Result, error)

// streamAttempt 在后台执行尝试并以 SSE 推送阶段和最终结果
func streamAttempt(c *gin.Context, run attemptFunc) {
	// 阶段总数有限，缓冲足够时流水线永远不会因客户端断开而阻塞
	stages := make(chan models.TxStage, 16)
	done := make(chan *pipeline.Result, 1)

	go func() {
		res, _ := run(func(stage models.TxStage) { stages <- stage })
		close(stages)
		done <- res
	}()

	c.Stream(func(w io.Writer) bool {
		if stage, ok := <-stages; ok {
			c.SSEvent("stage", gin.H{"stage": stage})
			return true
		}
		res := <-done
		c.SSEvent("outcome", res.Outcome)
		return false
	})
}
