package service

import (
	"time"

	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// Deps 各服务共享的依赖
type Deps struct {
	Store      repository.IndexStore
	Topics     repository.TopicRepository
	Categories repository.CategoryRepository
	Privileges Privileges
	Hooks      *hooks.Registry
	Metrics    *Metrics
	// Now 默认 time.Now，测试中注入固定时钟
	Now func() time.Time
	// DefaultSort 请求未指定排序时使用
	DefaultSort model.SortMode
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) nowMillis() int64 { return d.now().UnixMilli() }

func (d Deps) registry() *hooks.Registry {
	if d.Hooks == nil {
		return emptyRegistry
	}
	return d.Hooks
}

var emptyRegistry = hooks.NewRegistry()
