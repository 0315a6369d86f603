package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/olowe/batchmint-4337/models"
	"github.com/olowe/batchmint-4337/pipeline"
)

// AccountController 智能账户信息
type AccountController struct {
	deployer Deployer
	logger   zerolog.Logger
}

// NewAccountController 创建一个新的 AccountController 实例
func NewAccountController(deployer Deployer, logger zerolog.Logger) *AccountController {
	return &AccountController{deployer: deployer, logger: logger}
}

// accountResponse GET /account 的响应
type accountResponse struct {
	Owner        string `json:"owner"`
	SmartAccount string `json:"smartAccount"`
	Deployed     bool   `json:"deployed"`
	Deposit      string `json:"deposit"`
	CreationGas  string `json:"creationGas,omitempty"`
}

// GetAccount 处理 GET /account
func (ctrl *AccountController) GetAccount(c *gin.Context) {
	info, err := ctrl.deployer.Account(c.Request.Context())
	if err != nil {
		if pipeline.IsUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		ctrl.logger.Error().Err(err).Msg("error reading smart account")
		c.JSON(http.StatusBadGateway, gin.H{"error": pipeline.HumanMessage(err)})
		return
	}

	resp := accountResponse{
		Owner:        info.Owner.Hex(),
		SmartAccount: info.SmartAccount.Hex(),
		Deployed:     info.Deployed,
		Deposit:      info.Deposit.String(),
	}
	if info.CreationGas != nil {
		resp.CreationGas = info.CreationGas.String()
	}
	c.JSON(http.StatusOK, resp)
}

// ListTokens 处理 GET /account/tokens：链上 TokenDeployed 事件中智能账户部署过的代币
func (ctrl *AccountController) ListTokens(c *gin.Context) {
	tokens, err := ctrl.deployer.Tokens(c.Request.Context())
	if err != nil {
		if pipeline.IsUnavailable(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		ctrl.logger.Error().Err(err).Msg("error listing deployed tokens")
		c.JSON(http.StatusBadGateway, gin.H{"error": pipeline.HumanMessage(err)})
		return
	}
	if tokens == nil {
		tokens = []models.DeployedToken{}
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}
