package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/topic-index/internal/model"
)

// TopicEventRepository 审计事件表
type TopicEventRepository interface {
	Create(ctx context.Context, ev *model.TopicEvent) error
	ListByTopic(ctx context.Context, tid int64, offset, limit int) ([]*model.TopicEvent, error)
}

type topicEventRepository struct{ db *gorm.DB }

func NewTopicEventRepository(db *gorm.DB) TopicEventRepository { return &topicEventRepository{db: db} }

func (r *topicEventRepository) Create(ctx context.Context, ev *model.TopicEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev).Error
}

func (r *topicEventRepository) ListByTopic(ctx context.Context, tid int64, offset, limit int) ([]*model.TopicEvent, error) {
	var res []*model.TopicEvent
	err := r.db.WithContext(ctx).
		Where("tid = ?", tid).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}
