package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/topic-index/internal/api/middleware"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/pkg/response"
)

type listTopicsQuery struct {
	Start     int64    `form:"start" binding:"min=0"`
	Stop      int64    `form:"stop,default=19" binding:"min=-1"`
	Sort      string   `form:"sort" binding:"omitempty,sortmode"`
	Tags      []string `form:"tag"`
	TargetUID int64    `form:"target_uid" binding:"min=0"`
}

func (q listTopicsQuery) toQuery(cid int64, viewer model.Actor) model.TopicListQuery {
	return model.TopicListQuery{
		CID:       cid,
		Start:     q.Start,
		Stop:      q.Stop,
		Sort:      model.SortMode(q.Sort),
		Tags:      q.Tags,
		TargetUID: q.TargetUID,
		UID:       viewer.UID(),
	}
}

// ListTopics 分类主题列表（置顶、普通、过期依次合并）
// @Summary 分类主题列表
// @Tags 分类
// @Produce json
// @Param cid path int true "分类ID"
// @Param start query int false "起始下标" default(0)
// @Param stop query int false "结束下标（含），-1 表示到末尾" default(19)
// @Param sort query string false "排序" Enums(newest_to_oldest, oldest_to_newest, most_posts, most_votes, most_views)
// @Param tag query []string false "标签过滤"
// @Param target_uid query int false "只看某个用户的主题"
// @Success 200 {object} response.Response{data=model.TopicPage}
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/categories/{cid}/topics [get]
func (h *Handler) ListTopics(c *gin.Context) {
	cid, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var q listTopicsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	page, err := h.lister.GetCategoryTopics(c.Request.Context(), q.toQuery(cid, middleware.ActorFrom(c)))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

// TopicCount 分类主题数；带标签或用户过滤时为交集大小
// @Summary 分类主题数
// @Tags 分类
// @Produce json
// @Param cid path int true "分类ID"
// @Param tag query []string false "标签过滤"
// @Param target_uid query int false "只看某个用户的主题"
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/categories/{cid}/topics/count [get]
func (h *Handler) TopicCount(c *gin.Context) {
	cid, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var q listTopicsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.lister.GetTopicCount(c.Request.Context(), q.toQuery(cid, middleware.ActorFrom(c)))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"cid": cid, "count": n})
}

type createTopicRequest struct {
	Title     string   `json:"title" binding:"required,max=255"`
	Tags      []string `json:"tags" binding:"max=10,dive,max=64"`
	Timestamp int64    `json:"timestamp" binding:"min=0"`
}

// CreateTopic 发布主题；timestamp 在未来时为定时发布
// @Summary 发布主题
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cid path int true "分类ID"
// @Param request body createTopicRequest true "主题"
// @Success 200 {object} response.Response{data=model.Topic}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/categories/{cid}/topics [post]
func (h *Handler) CreateTopic(c *gin.Context) {
	cid, ok := paramID(c, "cid")
	if !ok {
		return
	}
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topic, err := h.poster.Create(c.Request.Context(), model.NewTopic{
		CID:       cid,
		UID:       middleware.ActorFrom(c).UID(),
		Title:     req.Title,
		Tags:      req.Tags,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topic)
}
