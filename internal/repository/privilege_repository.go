package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// PrivilegeRepository 管理员与版主成员关系
type PrivilegeRepository interface {
	IsAdministrator(ctx context.Context, uid int64) (bool, error)
	IsModerator(ctx context.Context, cid, uid int64) (bool, error)
	AddAdministrator(ctx context.Context, uid int64) error
	AddModerator(ctx context.Context, cid, uid int64) error
}

type privilegeRepository struct {
	rdb *redis.Client
}

func NewPrivilegeRepository(rdb *redis.Client) PrivilegeRepository {
	return &privilegeRepository{rdb: rdb}
}

func (r *privilegeRepository) isMember(ctx context.Context, key string, uid int64) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, key, strconv.FormatInt(uid, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return ok, nil
}

func (r *privilegeRepository) IsAdministrator(ctx context.Context, uid int64) (bool, error) {
	return r.isMember(ctx, AdministratorsKey, uid)
}

func (r *privilegeRepository) IsModerator(ctx context.Context, cid, uid int64) (bool, error) {
	return r.isMember(ctx, CategoryModeratorsKey(cid), uid)
}

func (r *privilegeRepository) AddAdministrator(ctx context.Context, uid int64) error {
	return r.rdb.SAdd(ctx, AdministratorsKey, strconv.FormatInt(uid, 10)).Err()
}

func (r *privilegeRepository) AddModerator(ctx context.Context, cid, uid int64) error {
	return r.rdb.SAdd(ctx, CategoryModeratorsKey(cid), strconv.FormatInt(uid, 10)).Err()
}
