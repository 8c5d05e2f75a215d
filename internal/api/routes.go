package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jisotalo/codesys-client/internal/api/middleware"
)

// RegisterRoutes 注册查询与发布路由
func RegisterRoutes(r *gin.Engine, handler *Handler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || handler == nil {
		return
	}

	api := r.Group("/api")
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	api.GET("/lists", handler.ListLists)
	api.GET("/lists/:listId/values", handler.GetValues)
	api.POST("/lists/:listId/values", handler.PostValues)
	api.GET("/lists/:listId/messages", handler.GetMessages)
	api.GET("/stats", handler.GetStats)

	logger.Info("api routes registered", zap.Int("endpoints", 5))
}
