package model

// SortMode 分类主题列表的排序方式
type SortMode string

const (
	SortNewestToOldest SortMode = "newest_to_oldest"
	SortOldestToNewest SortMode = "oldest_to_newest"
	SortMostPosts      SortMode = "most_posts"
	SortMostVotes      SortMode = "most_votes"
	SortMostViews      SortMode = "most_views"
)

// Direction 有序集合遍历方向
type Direction string

const (
	HighestToLowest Direction = "highest-to-lowest"
	LowestToHighest Direction = "lowest-to-highest"
)

func (d Direction) Reverse() bool { return d == HighestToLowest }

// TopicListQuery 分类主题分页请求；Stop 为 -1 表示取到末尾
type TopicListQuery struct {
	CID       int64
	Start     int64
	Stop      int64
	Sort      SortMode
	Tags      []string
	TargetUID int64
	// 浏览者，用于定时主题可见性判断
	UID int64
}

// TopicPage 一页主题
type TopicPage struct {
	CID       int64    `json:"cid"`
	Topics    []*Topic `json:"topics"`
	NextStart int64    `json:"nextStart"`
}
