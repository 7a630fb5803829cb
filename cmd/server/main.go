package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/d60-Lab/topic-index/config"
	"github.com/d60-Lab/topic-index/internal/api/handler"
	"github.com/d60-Lab/topic-index/internal/api/router"
	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/internal/service"
	"github.com/d60-Lab/topic-index/pkg/database"
	"github.com/d60-Lab/topic-index/pkg/logger"
	"github.com/d60-Lab/topic-index/pkg/redisclient"
	"github.com/d60-Lab/topic-index/pkg/tracing"
)

// @title Topic Index API
// @version 1.0
// @description 分类主题索引：置顶、过期、锁定与分页合并
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}

	deps := service.Deps{
		Store:       repository.NewIndexStore(rdb),
		Topics:      repository.NewTopicRepository(rdb),
		Categories:  repository.NewCategoryRepository(rdb),
		Privileges:  service.NewPrivileges(repository.NewPrivilegeRepository(rdb)),
		Hooks:       hooks.NewRegistry(),
		Metrics:     service.NewMetrics(prometheus.DefaultRegisterer),
		DefaultSort: model.SortMode(cfg.Category.DefaultSort),
	}

	// 审计事件异步落库
	events := repository.NewTopicEventRepository(db)
	recorder := service.NewEventRecorder(events, cfg.Audit.QueueSize, deps.Metrics)
	recorder.Attach(deps.Hooks)
	stopRecorder := recorder.Start(cfg.Audit.Workers)

	tools := service.NewTopicTools(deps)
	sweeper := service.NewSweeper(deps, tools)
	lister := service.NewTopicLister(deps, service.NewSelector(deps), sweeper)
	poster := service.NewTopicPoster(deps)

	go publishLoop(ctx, poster, 10*time.Second)

	h := handler.NewHandler(lister, tools, poster, events)
	r := router.New(h, router.Options{
		Config: cfg,
		Health: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		logger.Info("topic-index listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := stopRecorder(shutdownCtx); err != nil {
		logger.Warn("audit recorder shutdown", zap.Error(err), zap.Int("pending", recorder.QueueLen()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// publishLoop 定时把到期的定时主题放入普通域
func publishLoop(ctx context.Context, poster service.TopicPoster, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tids, err := poster.PublishDue(ctx)
			if err != nil {
				logger.Warn("publish scheduled topics", zap.Error(err))
				continue
			}
			if len(tids) > 0 {
				logger.Info("published scheduled topics", zap.Int64s("tids", tids))
			}
		}
	}
}
