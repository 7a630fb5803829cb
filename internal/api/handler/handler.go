package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/internal/service"
	"github.com/d60-Lab/topic-index/pkg/response"
)

// Handler 分类主题索引的 HTTP 入口
type Handler struct {
	lister service.TopicLister
	tools  service.TopicTools
	poster service.TopicPoster
	events repository.TopicEventRepository
}

func NewHandler(lister service.TopicLister, tools service.TopicTools, poster service.TopicPoster, events repository.TopicEventRepository) *Handler {
	return &Handler{lister: lister, tools: tools, poster: poster, events: events}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("sortmode", validSortMode)
	}
}

func validSortMode(fl validator.FieldLevel) bool {
	switch model.SortMode(fl.Field().String()) {
	case model.SortNewestToOldest, model.SortOldestToNewest,
		model.SortMostPosts, model.SortMostVotes, model.SortMostViews:
		return true
	}
	return false
}

// fail 按错误类别映射状态码
func fail(c *gin.Context, err error) {
	switch service.KindOf(err) {
	case service.KindNotFound:
		response.NotFound(c, err.Error())
	case service.KindInvalidState:
		response.Conflict(c, err.Error())
	case service.KindInvalidInput:
		response.BadRequest(c, err.Error())
	case service.KindForbidden:
		response.Forbidden(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
