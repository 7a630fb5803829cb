package router

import (
	"context"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/topic-index/config"
	_ "github.com/d60-Lab/topic-index/internal/api/docs"
	"github.com/d60-Lab/topic-index/internal/api/handler"
	"github.com/d60-Lab/topic-index/internal/api/middleware"
	"github.com/d60-Lab/topic-index/pkg/response"
)

// Options 路由依赖
type Options struct {
	Config *config.Config
	// Gatherer 为空时使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// Health 就绪检查，通常是 Redis PING
	Health func(ctx context.Context) error
}

func New(h *handler.Handler, opts Options) *gin.Engine {
	cfg := opts.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.Auth(cfg.JWT.Secret, cfg.JWT.Issuer))
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 运维路由
	r.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, response.Response{Code: http.StatusServiceUnavailable, Message: err.Error()})
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// 公共路由
	api.GET("/categories/:cid/topics", h.ListTopics)       // 分类主题列表
	api.GET("/categories/:cid/topics/count", h.TopicCount) // 分类主题数
	api.GET("/topics/:tid/events", h.Events)               // 审计记录
	api.POST("/topics/:tid/views", h.View)                 // 浏览数加一

	// 受保护路由
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired(), middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
	{
		authorized.POST("/categories/:cid/topics", h.CreateTopic) // 发布主题
		authorized.POST("/topics/:tid/replies", h.Reply)          // 记录回复
		authorized.PUT("/topics/:tid/votes", h.Vote)              // 更新投票

		authorized.PUT("/topics/pin", h.Pin)            // 置顶
		authorized.DELETE("/topics/pin", h.Unpin)       // 取消置顶
		authorized.PUT("/topics/expire", h.Expire)      // 过期
		authorized.DELETE("/topics/expire", h.Unexpire) // 取消过期
		authorized.PUT("/topics/lock", h.Lock)          // 锁定
		authorized.DELETE("/topics/lock", h.Unlock)     // 解锁

		authorized.PUT("/topics/:tid/order", h.OrderPinned) // 置顶排序
		authorized.PUT("/topics/:tid/move", h.Move)         // 迁移
		authorized.PUT("/topics/:tid/state", h.Restore)     // 恢复
		authorized.DELETE("/topics/:tid/state", h.Delete)   // 删除
		authorized.DELETE("/topics/:tid", h.Purge)          // 清除
	}

	return r
}
