package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/olowe/batchmint-4337/controllers"
)

func SetupUserOpRouter(r *gin.Engine, userOpController *controllers.UserOpController) {
	r.POST("/userOp", userOpController.StoreUserOp)
}
