package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/topic-index/config"
	"github.com/d60-Lab/topic-index/internal/api/handler"
	"github.com/d60-Lab/topic-index/internal/api/middleware"
	"github.com/d60-Lab/topic-index/internal/hooks"
	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/internal/repository"
	"github.com/d60-Lab/topic-index/internal/service"
	"github.com/d60-Lab/topic-index/pkg/database"
)

const (
	secret   = "test-secret"
	issuer   = "topic-index"
	adminUID = 1
	userUID  = 10
)

func init() { gin.SetMode(gin.TestMode) }

type apiEnv struct {
	r      *gin.Engine
	deps   service.Deps
	poster service.TopicPoster
	cid    int64
	health error
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	privRepo := repository.NewPrivilegeRepository(rdb)
	require.NoError(t, privRepo.AddAdministrator(ctx, adminUID))

	reg := prometheus.NewRegistry()
	deps := service.Deps{
		Store:      repository.NewIndexStore(rdb),
		Topics:     repository.NewTopicRepository(rdb),
		Categories: repository.NewCategoryRepository(rdb),
		Privileges: service.NewPrivileges(privRepo),
		Hooks:      hooks.NewRegistry(),
		Metrics:    service.NewMetrics(reg),
	}
	tools := service.NewTopicTools(deps)
	sweeper := service.NewSweeper(deps, tools)
	lister := service.NewTopicLister(deps, service.NewSelector(deps), sweeper)
	poster := service.NewTopicPoster(deps)

	dbCfg := &config.Config{}
	dbCfg.Database.Driver = "sqlite"
	dbCfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.InitDB(dbCfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	events := repository.NewTopicEventRepository(db)

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.JWT.Secret = secret
	cfg.JWT.Issuer = issuer

	env := &apiEnv{deps: deps, poster: poster}
	h := handler.NewHandler(lister, tools, poster, events)
	env.r = New(h, Options{
		Config:   cfg,
		Gatherer: reg,
		Health:   func(context.Context) error { return env.health },
	})

	cat, err := deps.Categories.Create(ctx, "general")
	require.NoError(t, err)
	env.cid = cat.CID
	return env
}

func token(t *testing.T, uid int64) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, issuer, uid, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *apiEnv) do(t *testing.T, method, path string, uid int64, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid > 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, uid))
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func (e *apiEnv) createTopic(t *testing.T, title string) int64 {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/categories/%d/topics", e.cid), userUID,
		map[string]interface{}{"title": title, "tags": []string{"Go"}})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var topic model.Topic
	require.NoError(t, json.Unmarshal(resp.Data, &topic))
	return topic.TID
}

func TestHealthz(t *testing.T) {
	env := setupAPI(t)

	code, _ := env.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, code)

	env.health = errors.New("redis down")
	code, resp := env.do(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "redis down", resp.Message)
}

func TestMetricsAndSwagger(t *testing.T) {
	env := setupAPI(t)

	// 触发一次过期检查，保证指标被导出
	tid := env.createTopic(t, "metrics")
	_, err := service.NewSweeper(env.deps, service.NewTopicTools(env.deps)).CheckExpire(context.Background(), []int64{tid})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w = httptest.NewRecorder()
	env.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/categories/{cid}/topics")
}

func TestListTopics(t *testing.T) {
	env := setupAPI(t)
	first := env.createTopic(t, "first")
	second := env.createTopic(t, "second")

	code, resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d/topics?start=0&stop=9", env.cid), 0, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var page model.TopicPage
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Topics, 2)
	tids := []int64{page.Topics[0].TID, page.Topics[1].TID}
	assert.ElementsMatch(t, []int64{first, second}, tids)

	code, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d/topics/count?tag=go", env.cid), 0, nil)
	require.Equal(t, http.StatusOK, code)
	var count struct {
		CID   int64 `json:"cid"`
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &count))
	assert.Equal(t, int64(2), count.Count)

	code, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d/topics?sort=random", env.cid), 0, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodGet, "/api/v1/categories/abc/topics", 0, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTopicToolsEndpoints(t *testing.T) {
	env := setupAPI(t)
	tid := env.createTopic(t, "tools")
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		path   string
		uid    int64
		body   interface{}
		want   int
	}{
		{"guest cannot pin", http.MethodPut, "/api/v1/topics/pin", 0, map[string]interface{}{"tids": []int64{tid}}, http.StatusUnauthorized},
		{"user lacks privileges", http.MethodPut, "/api/v1/topics/pin", userUID, map[string]interface{}{"tids": []int64{tid}}, http.StatusForbidden},
		{"empty tids", http.MethodPut, "/api/v1/topics/pin", adminUID, map[string]interface{}{"tids": []int64{}}, http.StatusBadRequest},
		{"order unpinned", http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/order", tid), adminUID, map[string]interface{}{"order": 0}, http.StatusConflict},
		{"missing topic", http.MethodPut, "/api/v1/topics/lock", adminUID, map[string]interface{}{"tids": []int64{999}}, http.StatusNotFound},
		{"admin pins", http.MethodPut, "/api/v1/topics/pin", adminUID, map[string]interface{}{"tids": []int64{tid}}, http.StatusOK},
		{"order pinned", http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/order", tid), adminUID, map[string]interface{}{"order": 0}, http.StatusOK},
		{"admin unpins", http.MethodDelete, "/api/v1/topics/pin", adminUID, map[string]interface{}{"tids": []int64{tid}}, http.StatusOK},
		{"admin locks", http.MethodPut, "/api/v1/topics/lock", adminUID, map[string]interface{}{"tids": []int64{tid}}, http.StatusOK},
		{"expire needs deadline", http.MethodPut, "/api/v1/topics/expire", adminUID, map[string]interface{}{"tids": []int64{tid}}, http.StatusBadRequest},
		{"move to missing category", http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/move", tid), adminUID, map[string]interface{}{"cid": 999}, http.StatusNotFound},
		{"move to same category", http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/move", tid), adminUID, map[string]interface{}{"cid": env.cid}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, tt.method, tt.path, tt.uid, tt.body)
			assert.Equal(t, tt.want, code, resp.Message)
		})
	}

	topic, err := env.deps.Topics.Get(ctx, tid)
	require.NoError(t, err)
	assert.False(t, topic.Pinned)
	assert.True(t, topic.Locked)
}

func TestExpireAndRestoreEndpoints(t *testing.T) {
	env := setupAPI(t)
	tid := env.createTopic(t, "expire")
	ctx := context.Background()

	past := float64(time.Now().Add(-time.Minute).UnixMilli())
	code, resp := env.do(t, http.MethodPut, "/api/v1/topics/expire", adminUID,
		map[string]interface{}{"tids": []int64{tid}, "expire": past})
	require.Equal(t, http.StatusOK, code, resp.Message)
	topic, err := env.deps.Topics.Get(ctx, tid)
	require.NoError(t, err)
	assert.True(t, topic.Expire)

	code, _ = env.do(t, http.MethodDelete, "/api/v1/topics/expire", adminUID, map[string]interface{}{"tids": []int64{tid}})
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/topics/%d/state", tid), adminUID, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/topics/%d/state", tid), adminUID, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/state", tid), adminUID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/topics/%d", tid), adminUID, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, "/api/v1/topics/lock", adminUID, map[string]interface{}{"tids": []int64{tid}})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPostingEndpoints(t *testing.T) {
	env := setupAPI(t)
	tid := env.createTopic(t, "posting")
	ctx := context.Background()

	code, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/topics/%d/replies", tid), userUID, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/topics/%d/votes", tid), userUID,
		map[string]interface{}{"upvotes": 3, "downvotes": 1})
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/topics/%d/views", tid), 0, nil)
	require.Equal(t, http.StatusOK, code)

	topic, err := env.deps.Topics.Get(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), topic.PostCount)
	assert.Equal(t, int64(2), topic.Votes())
	assert.Equal(t, int64(1), topic.ViewCount)

	code, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/categories/%d/topics", env.cid), userUID,
		map[string]interface{}{"title": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPost, "/api/v1/categories/999/topics", userUID,
		map[string]interface{}{"title": "lost"})
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/topics/%d/events?limit=500", tid), 0, nil)
	require.Equal(t, http.StatusOK, code)
	var events struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &events))
	assert.Equal(t, 20, events.Limit)
}
