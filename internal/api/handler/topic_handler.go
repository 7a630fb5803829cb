package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/topic-index/internal/api/middleware"
	"github.com/d60-Lab/topic-index/internal/service"
	"github.com/d60-Lab/topic-index/pkg/response"
)

type tidsRequest struct {
	Tids []int64 `json:"tids" binding:"required,min=1,max=100,dive,gt=0"`
}

type pinRequest struct {
	Tids []int64 `json:"tids" binding:"required,min=1,max=100,dive,gt=0"`
	// 毫秒时间戳，0 表示不自动取消
	Expiry float64 `json:"expiry" binding:"min=0"`
}

type expireRequest struct {
	Tids   []int64 `json:"tids" binding:"required,min=1,max=100,dive,gt=0"`
	Expire float64 `json:"expire" binding:"required,gt=0"`
}

type orderRequest struct {
	Order *int64 `json:"order" binding:"required,min=0"`
}

type moveRequest struct {
	CID int64 `json:"cid" binding:"required,gt=0"`
}

type voteRequest struct {
	Upvotes   int64 `json:"upvotes" binding:"min=0"`
	Downvotes int64 `json:"downvotes" binding:"min=0"`
}

type replyRequest struct {
	Timestamp int64 `json:"timestamp" binding:"min=0"`
}

// batch 对请求中的每个主题执行同一操作
func (h *Handler) batch(c *gin.Context, op service.TopicOp) {
	var req tidsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topics, err := service.ForEach(c.Request.Context(), req.Tids, middleware.ActorFrom(c), op)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topics)
}

// Pin 置顶主题
// @Summary 置顶
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body pinRequest true "主题ID列表与可选的置顶截止时间"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/topics/pin [put]
func (h *Handler) Pin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topics, err := service.PinMany(c.Request.Context(), h.tools, req.Tids, req.Expiry, middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topics)
}

// Unpin 取消置顶
// @Summary 取消置顶
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body tidsRequest true "主题ID列表"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Router /api/v1/topics/pin [delete]
func (h *Handler) Unpin(c *gin.Context) { h.batch(c, h.tools.Unpin) }

// Expire 设置过期时间；已到期的立即转入过期域
// @Summary 过期
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body expireRequest true "主题ID列表与过期时间（毫秒）"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Router /api/v1/topics/expire [put]
func (h *Handler) Expire(c *gin.Context) {
	var req expireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topics, err := service.ExpireMany(c.Request.Context(), h.tools, req.Tids, req.Expire, middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topics)
}

// Unexpire 取消过期
// @Summary 取消过期
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body tidsRequest true "主题ID列表"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Router /api/v1/topics/expire [delete]
func (h *Handler) Unexpire(c *gin.Context) { h.batch(c, h.tools.Unexpire) }

// Lock 锁定主题
// @Summary 锁定
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body tidsRequest true "主题ID列表"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Router /api/v1/topics/lock [put]
func (h *Handler) Lock(c *gin.Context) { h.batch(c, h.tools.Lock) }

// Unlock 解锁主题
// @Summary 解锁
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body tidsRequest true "主题ID列表"
// @Success 200 {object} response.Response{data=[]model.Topic}
// @Router /api/v1/topics/lock [delete]
func (h *Handler) Unlock(c *gin.Context) { h.batch(c, h.tools.Unlock) }

// OrderPinned 调整置顶主题的位置
// @Summary 置顶排序
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Param request body orderRequest true "目标位置，0 为最上"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/topics/{tid}/order [put]
func (h *Handler) OrderPinned(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.tools.OrderPinned(c.Request.Context(), tid, *req.Order, middleware.ActorFrom(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Move 迁移主题到另一个分类
// @Summary 迁移主题
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Param request body moveRequest true "目标分类"
// @Success 200 {object} response.Response{data=service.MoveResult}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/topics/{tid}/move [put]
func (h *Handler) Move(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.tools.Move(c.Request.Context(), tid, req.CID, middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) single(c *gin.Context, op service.TopicOp) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	topic, err := op(c.Request.Context(), tid, middleware.ActorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topic)
}

// Restore 恢复已删除的主题
// @Summary 恢复主题
// @Tags 主题
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Success 200 {object} response.Response{data=model.Topic}
// @Router /api/v1/topics/{tid}/state [put]
func (h *Handler) Restore(c *gin.Context) { h.single(c, h.tools.Restore) }

// Delete 软删除主题
// @Summary 删除主题
// @Tags 主题
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Success 200 {object} response.Response{data=model.Topic}
// @Router /api/v1/topics/{tid}/state [delete]
func (h *Handler) Delete(c *gin.Context) { h.single(c, h.tools.Delete) }

// Purge 彻底清除主题及其索引
// @Summary 清除主题
// @Tags 主题
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Success 200 {object} response.Response
// @Router /api/v1/topics/{tid} [delete]
func (h *Handler) Purge(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	if err := h.tools.Purge(c.Request.Context(), tid, middleware.ActorFrom(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Reply 记录一条回复，刷新最后回复时间与回复数
// @Summary 记录回复
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Param request body replyRequest false "回复时间（毫秒），缺省为当前时间"
// @Success 200 {object} response.Response{data=model.Topic}
// @Router /api/v1/topics/{tid}/replies [post]
func (h *Handler) Reply(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	var req replyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	topic, err := h.poster.RecordReply(c.Request.Context(), tid, req.Timestamp)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topic)
}

// Vote 更新投票数
// @Summary 更新投票
// @Tags 主题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tid path int true "主题ID"
// @Param request body voteRequest true "赞成与反对数"
// @Success 200 {object} response.Response{data=model.Topic}
// @Router /api/v1/topics/{tid}/votes [put]
func (h *Handler) Vote(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	topic, err := h.poster.RecordVote(c.Request.Context(), tid, req.Upvotes, req.Downvotes)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topic)
}

// View 浏览数加一
// @Summary 记录浏览
// @Tags 主题
// @Produce json
// @Param tid path int true "主题ID"
// @Success 200 {object} response.Response{data=model.Topic}
// @Router /api/v1/topics/{tid}/views [post]
func (h *Handler) View(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	topic, err := h.poster.RecordView(c.Request.Context(), tid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, topic)
}

// Events 主题的审计记录
// @Summary 审计记录
// @Tags 主题
// @Produce json
// @Param tid path int true "主题ID"
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=[]model.TopicEvent}
// @Router /api/v1/topics/{tid}/events [get]
func (h *Handler) Events(c *gin.Context) {
	tid, ok := paramID(c, "tid")
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.events.ListByTopic(c.Request.Context(), tid, offset, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"offset": offset, "limit": limit, "list": list})
}
