package server

import (
	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/reconcile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func registerAdminRoutes(admin gin.IRouter, deps Dependencies) {
	admin.POST("/consistency-check", func(c *gin.Context) {
		operator, _ := auth.CurrentOperator(c)
		logger.FromContext(c, deps.Log).Info("consistency check requested", zap.String("operator", operator.Subject))

		status, report := deps.Reconcile.Run(c.Request.Context(), reconcile.SourceWebApplication)
		c.JSON(status, report)
	})
}
