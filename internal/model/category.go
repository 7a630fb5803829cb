package model

// Category 分类
type Category struct {
	CID        int64  `json:"cid"`
	Name       string `json:"name"`
	TopicCount int64  `json:"topic_count"`
	PostCount  int64  `json:"post_count"`
}

// CategoryCounters 分类计数快照，由迁移等操作显式返回
type CategoryCounters struct {
	CID        int64 `json:"cid"`
	TopicCount int64 `json:"topic_count"`
	PostCount  int64 `json:"post_count"`
}

func (c *Category) Counters() CategoryCounters {
	return CategoryCounters{CID: c.CID, TopicCount: c.TopicCount, PostCount: c.PostCount}
}
