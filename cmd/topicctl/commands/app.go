package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/d60-Lab/topic-index/config"
	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/internal/service"
	"github.com/d60-Lab/topic-index/pkg/redisclient"
)

// connect 测试中替换为 miniredis
var connect = func(ctx context.Context, addr string) (*redis.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if addr != "" {
		cfg.Redis.Addr = addr
	}
	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return rdb, cfg, nil
}

type app struct {
	rdb    *redis.Client
	deps   service.Deps
	tools  service.TopicTools
	lister service.TopicLister
	poster service.TopicPoster
}

func newApp(cmd *cobra.Command) (*app, error) {
	addr, _ := cmd.Flags().GetString("redis")
	rdb, cfg, err := connect(cmd.Context(), addr)
	if err != nil {
		return nil, err
	}
	deps := service.Deps{
		Store:       repository.NewIndexStore(rdb),
		Topics:      repository.NewTopicRepository(rdb),
		Categories:  repository.NewCategoryRepository(rdb),
		Privileges:  service.NewPrivileges(repository.NewPrivilegeRepository(rdb)),
		Hooks:       hooks.NewRegistry(),
		Metrics:     service.NewMetrics(prometheus.NewRegistry()),
		DefaultSort: model.SortMode(cfg.Category.DefaultSort),
	}
	tools := service.NewTopicTools(deps)
	return &app{
		rdb:    rdb,
		deps:   deps,
		tools:  tools,
		lister: service.NewTopicLister(deps, service.NewSelector(deps), service.NewSweeper(deps, tools)),
		poster: service.NewTopicPoster(deps),
	}, nil
}

func (a *app) Close() error { return a.rdb.Close() }

// withApp 打开连接、执行 fn、关闭连接
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
