package model

// Topic 主题在 Redis hash topic:<tid> 中的字段；时间均为毫秒
type Topic struct {
	TID          int64  `json:"tid"`
	CID          int64  `json:"cid"`
	UID          int64  `json:"uid"`
	Title        string `json:"title"`
	Timestamp    int64  `json:"timestamp"`
	LastPostTime int64  `json:"lastposttime"`
	PostCount    int64  `json:"postcount"`
	Upvotes      int64  `json:"upvotes"`
	Downvotes    int64  `json:"downvotes"`
	ViewCount    int64  `json:"viewcount"`
	Pinned       bool   `json:"pinned"`
	PinExpiry    int64  `json:"pinExpiry,omitempty"`
	Expire       bool   `json:"expire"`
	ExpireTime   int64  `json:"expireTime,omitempty"`
	Locked       bool   `json:"locked"`
	Deleted      bool   `json:"deleted"`
	Scheduled    bool   `json:"scheduled"`
	OldCID       int64  `json:"oldCid,omitempty"`

	// 以下字段不持久化
	Tags  []string `json:"tags,omitempty"`
	Index int64    `json:"index"`
}

// Votes 投票差值，用作 tids:votes 的分数
func (t *Topic) Votes() int64 { return t.Upvotes - t.Downvotes }

// InNormalDomain 既未置顶、未过期，也不是定时发布
func (t *Topic) InNormalDomain() bool { return !t.Pinned && !t.Expire && !t.Scheduled }

// NewTopic 发帖入参
type NewTopic struct {
	CID       int64
	UID       int64
	Title     string
	Tags      []string
	Timestamp int64 // 0 表示立即发布；未来时间表示定时发布
}
