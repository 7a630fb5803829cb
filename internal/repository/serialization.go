package repository

import (
	"fmt"
	"strconv"

	"github.com/d60-Lab/topic-index/internal/model"
)

// 主题 hash 字段名
const (
	FieldTID          = "tid"
	FieldCID          = "cid"
	FieldUID          = "uid"
	FieldTitle        = "title"
	FieldTimestamp    = "timestamp"
	FieldLastPostTime = "lastposttime"
	FieldPostCount    = "postcount"
	FieldUpvotes      = "upvotes"
	FieldDownvotes    = "downvotes"
	FieldViewCount    = "viewcount"
	FieldPinned       = "pinned"
	FieldPinExpiry    = "pinExpiry"
	FieldExpire       = "expire"
	FieldExpireTime   = "expireTime"
	FieldLocked       = "locked"
	FieldDeleted      = "deleted"
	FieldScheduled    = "scheduled"
	FieldOldCID       = "oldCid"
)

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TopicToHash 序列化为 HSET 参数；可选字段为 0 时不写入
func TopicToHash(t *model.Topic) map[string]interface{} {
	h := map[string]interface{}{
		FieldTID:          t.TID,
		FieldCID:          t.CID,
		FieldUID:          t.UID,
		FieldTitle:        t.Title,
		FieldTimestamp:    t.Timestamp,
		FieldLastPostTime: t.LastPostTime,
		FieldPostCount:    t.PostCount,
		FieldUpvotes:      t.Upvotes,
		FieldDownvotes:    t.Downvotes,
		FieldViewCount:    t.ViewCount,
		FieldPinned:       boolField(t.Pinned),
		FieldExpire:       boolField(t.Expire),
		FieldLocked:       boolField(t.Locked),
		FieldDeleted:      boolField(t.Deleted),
		FieldScheduled:    boolField(t.Scheduled),
	}
	if t.PinExpiry > 0 {
		h[FieldPinExpiry] = t.PinExpiry
	}
	if t.ExpireTime > 0 {
		h[FieldExpireTime] = t.ExpireTime
	}
	if t.OldCID > 0 {
		h[FieldOldCID] = t.OldCID
	}
	return h
}

// HashToTopic 反序列化 HGETALL 结果
func HashToTopic(h map[string]string) (*model.Topic, error) {
	t := &model.Topic{Title: h[FieldTitle]}
	ints := []struct {
		field string
		dst   *int64
	}{
		{FieldTID, &t.TID},
		{FieldCID, &t.CID},
		{FieldUID, &t.UID},
		{FieldTimestamp, &t.Timestamp},
		{FieldLastPostTime, &t.LastPostTime},
		{FieldPostCount, &t.PostCount},
		{FieldUpvotes, &t.Upvotes},
		{FieldDownvotes, &t.Downvotes},
		{FieldViewCount, &t.ViewCount},
		{FieldPinExpiry, &t.PinExpiry},
		{FieldExpireTime, &t.ExpireTime},
		{FieldOldCID, &t.OldCID},
	}
	for _, f := range ints {
		v, err := parseIntField(h, f.field)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	t.Pinned = h[FieldPinned] == "1"
	t.Expire = h[FieldExpire] == "1"
	t.Locked = h[FieldLocked] == "1"
	t.Deleted = h[FieldDeleted] == "1"
	t.Scheduled = h[FieldScheduled] == "1"
	return t, nil
}

func parseIntField(h map[string]string, field string) (int64, error) {
	raw, ok := h[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// 历史数据可能写成浮点
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
		}
		v = int64(f)
	}
	return v, nil
}
