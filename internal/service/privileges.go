package service

import (
	"context"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
)

// Privileges 权限判定
type Privileges interface {
	IsAdminOrMod(ctx context.Context, cid, uid int64) (bool, error)
	// CanDelete 版主或主题作者
	CanDelete(ctx context.Context, topic *model.Topic, uid int64) (bool, error)
	CanPurge(ctx context.Context, topic *model.Topic, uid int64) (bool, error)
	// CanSchedule 能否看到/管理定时发布的主题
	CanSchedule(ctx context.Context, cid, uid int64) (bool, error)
}

type privileges struct {
	repo repository.PrivilegeRepository
}

func NewPrivileges(repo repository.PrivilegeRepository) Privileges {
	return &privileges{repo: repo}
}

func (p *privileges) IsAdminOrMod(ctx context.Context, cid, uid int64) (bool, error) {
	if uid <= 0 {
		return false, nil
	}
	admin, err := p.repo.IsAdministrator(ctx, uid)
	if err != nil || admin {
		return admin, err
	}
	return p.repo.IsModerator(ctx, cid, uid)
}

func (p *privileges) CanDelete(ctx context.Context, topic *model.Topic, uid int64) (bool, error) {
	if uid > 0 && topic.UID == uid {
		return true, nil
	}
	return p.IsAdminOrMod(ctx, topic.CID, uid)
}

func (p *privileges) CanPurge(ctx context.Context, topic *model.Topic, uid int64) (bool, error) {
	return p.IsAdminOrMod(ctx, topic.CID, uid)
}

func (p *privileges) CanSchedule(ctx context.Context, cid, uid int64) (bool, error) {
	return p.IsAdminOrMod(ctx, cid, uid)
}
