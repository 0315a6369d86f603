package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/olowe/batchmint-4337/controllers"
)

func SetupDeploymentRouter(r *gin.Engine, deploymentController *controllers.DeploymentController) {
	r.POST("/deployments", deploymentController.Deploy)
	r.GET("/deployments", deploymentController.List)
}

func SetupAccountRouter(r *gin.Engine, accountController *controllers.AccountController) {
	r.GET("/account", accountController.GetAccount)
	r.GET("/account/tokens", accountController.ListTokens)
}
