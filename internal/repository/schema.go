package repository

import "fmt"

// Redis key helpers
//
// 分类下的主题索引都以 cid:{cid}:tids 为前缀。同一主题在任一时刻只属于
// 置顶域 (tids:pinned)、过期域 (tids:expire) 或普通域 (tids / tids:posts /
// tids:votes / tids:views 四个并行排序) 之一。

const (
	// CategoriesKey 所有分类，score = cid
	CategoriesKey = "categories:cid"
	// TopicsKey 所有主题，score = 创建时间
	TopicsKey = "topics:tid"
	// ScheduledTopicsKey 定时发布主题，score = 发布时间
	ScheduledTopicsKey = "topics:scheduled"
	// GlobalKey 全局计数器 hash (nextTid, nextCid)
	GlobalKey = "global"
	// AdministratorsKey 管理员 uid 集合
	AdministratorsKey = "group:administrators:members"
)

// CategoryKey pattern: category:{cid}
func CategoryKey(cid int64) string { return fmt.Sprintf("category:%d", cid) }

// CategoryTidsKey 普通域，按最后回复时间。pattern: cid:{cid}:tids
func CategoryTidsKey(cid int64) string { return fmt.Sprintf("cid:%d:tids", cid) }

func CategoryPostsKey(cid int64) string { return fmt.Sprintf("cid:%d:tids:posts", cid) }

func CategoryVotesKey(cid int64) string { return fmt.Sprintf("cid:%d:tids:votes", cid) }

func CategoryViewsKey(cid int64) string { return fmt.Sprintf("cid:%d:tids:views", cid) }

// CategoryPinnedKey score 为置顶时间，重排后为位置下标
func CategoryPinnedKey(cid int64) string { return fmt.Sprintf("cid:%d:tids:pinned", cid) }

// CategoryExpireKey score 为 expireTime 或实际过期时间
func CategoryExpireKey(cid int64) string { return fmt.Sprintf("cid:%d:tids:expire", cid) }

// CategorySetExpireCheckKey 等待自动过期的主题，score 为截止时间
func CategorySetExpireCheckKey(cid int64) string {
	return fmt.Sprintf("cid:%d:tids:setexpirecheck", cid)
}

// CategoryLastPostTimeKey 分类下全部主题（不区分域），用于 topic_count
func CategoryLastPostTimeKey(cid int64) string {
	return fmt.Sprintf("cid:%d:tids:lastposttime", cid)
}

// CategoryUserTidsKey pattern: cid:{cid}:uid:{uid}:tids
func CategoryUserTidsKey(cid, uid int64) string {
	return fmt.Sprintf("cid:%d:uid:%d:tids", cid, uid)
}

// CategoryTagTopicsKey pattern: cid:{cid}:tag:{tag}:topics
func CategoryTagTopicsKey(cid int64, tag string) string {
	return fmt.Sprintf("cid:%d:tag:%s:topics", cid, tag)
}

// CategoryModeratorsKey 分类版主 uid 集合
func CategoryModeratorsKey(cid int64) string { return fmt.Sprintf("cid:%d:moderators", cid) }

// TagTopicsKey pattern: tag:{tag}:topics
func TagTopicsKey(tag string) string { return fmt.Sprintf("tag:%s:topics", tag) }

// TopicKey pattern: topic:{tid}
func TopicKey(tid int64) string { return fmt.Sprintf("topic:%d", tid) }

// TopicTagsKey pattern: topic:{tid}:tags
func TopicTagsKey(tid int64) string { return fmt.Sprintf("topic:%d:tags", tid) }

// NormalDomainKeys 普通域的四个并行排序集合
func NormalDomainKeys(cid int64) []string {
	return []string{
		CategoryTidsKey(cid),
		CategoryPostsKey(cid),
		CategoryVotesKey(cid),
		CategoryViewsKey(cid),
	}
}

// CategoryTopicKeys 主题在分类内可能出现的全部集合（迁移、清除时使用）
func CategoryTopicKeys(cid, uid int64, tags []string) []string {
	keys := []string{
		CategoryTidsKey(cid),
		CategoryPinnedKey(cid),
		CategoryExpireKey(cid),
		CategorySetExpireCheckKey(cid),
		CategoryPostsKey(cid),
		CategoryVotesKey(cid),
		CategoryViewsKey(cid),
		CategoryLastPostTimeKey(cid),
		CategoryUserTidsKey(cid, uid),
	}
	for _, tag := range tags {
		keys = append(keys, CategoryTagTopicsKey(cid, tag))
	}
	return keys
}
