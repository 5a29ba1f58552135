package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/card-ocr/api/handlers"
	"github.com/feichai0017/card-ocr/api/middleware"
	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/web"
)

// Options 路由配置
type Options struct {
	AllowOrigins []string
	Logger       logger.Logger
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	// 全局中间件
	r.Use(middleware.RequestID())
	if opts.Logger != nil {
		r.Use(middleware.Logger(opts.Logger))
	}
	r.Use(middleware.CORS(opts.AllowOrigins))

	r.GET("/health", h.Health.Health)
	web.Register(r)

	v1 := r.Group("/api/v1")
	v1.GET("/card-types", h.Session.ListCardTypes)
	v1.POST("/sessions", h.Session.CreateSession)

	// 会话路由组
	sessions := v1.Group("/sessions/:id", h.Session.LoadSession)
	{
		sessions.GET("", h.Session.GetSession)
		sessions.DELETE("", h.Session.DeleteSession)
		sessions.POST("/file", h.Session.UploadFile)
		sessions.DELETE("/file", h.Session.ClearFile)
		sessions.PUT("/card-type", h.Session.SelectCardType)
		sessions.POST("/process", h.Session.ProcessSession)
		sessions.GET("/result", h.Session.GetResult)
		sessions.GET("/download", h.Session.DownloadResult)
	}
}
