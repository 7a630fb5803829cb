package model

import "time"

// EventType 主题状态变更类型
type EventType string

const (
	EventPin       EventType = "pin"
	EventUnpin     EventType = "unpin"
	EventExpire    EventType = "expire"
	EventUnexpire  EventType = "unexpire"
	EventLock      EventType = "lock"
	EventUnlock    EventType = "unlock"
	EventSetExpire EventType = "set-expire"
	EventPinExpiry EventType = "set-pin-expiry"
	EventReorder   EventType = "reorder-pinned"
	EventMove      EventType = "move"
	EventDelete    EventType = "delete"
	EventRestore   EventType = "restore"
	EventPurge     EventType = "purge"
)

// TopicEvent 主题审计事件（异步落库）
type TopicEvent struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	TID       int64     `gorm:"column:tid;index:idx_topic_event_tid;not null"`
	CID       int64     `gorm:"column:cid;not null"`
	ToCID     int64     `gorm:"column:to_cid"`
	Type      string    `gorm:"type:varchar(32);not null"`
	ActorUID  int64     `gorm:"column:actor_uid"`
	System    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_topic_event_tid"`
}

func (TopicEvent) TableName() string { return "topic_events" }
