package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jisotalo/codesys-client/internal/iec"
	"github.com/jisotalo/codesys-client/internal/liststate"
	"github.com/jisotalo/codesys-client/internal/storage"
	redisstorage "github.com/jisotalo/codesys-client/internal/storage/redis"
)

// Publisher 把一组变量值编码并发布到网络
type Publisher interface {
	Publish(ctx context.Context, listID uint16, values map[string]any) error
}

// Handler 只读查询与发布接口
type Handler struct {
	defs    map[uint16]*iec.Definition
	tracker *liststate.Tracker
	repo    storage.CoreRepo        // 可为 nil（数据库未启用）
	cache   *redisstorage.ValueCache // 可为 nil（Redis未启用）
	pub     Publisher
	logger  *zap.Logger
}

// NewHandler 创建Handler
func NewHandler(defs []*iec.Definition, tracker *liststate.Tracker, repo storage.CoreRepo, cache *redisstorage.ValueCache, pub Publisher, logger *zap.Logger) *Handler {
	m := make(map[uint16]*iec.Definition, len(defs))
	for _, d := range defs {
		m[d.ListID()] = d
	}
	return &Handler{defs: m, tracker: tracker, repo: repo, cache: cache, pub: pub, logger: logger}
}

func (h *Handler) listID(c *gin.Context) (uint16, bool) {
	n, err := strconv.ParseUint(c.Param("listId"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid listId"})
		return 0, false
	}
	return uint16(n), true
}

// ListLists GET /api/lists 已声明的变量列表与运行状态
func (h *Handler) ListLists(c *gin.Context) {
	type listInfo struct {
		ListID     uint16          `json:"listId"`
		Name       string          `json:"name"`
		ByteLength int             `json:"byteLength"`
		Variables  []iec.Variable  `json:"variables"`
		State      *liststate.State `json:"state,omitempty"`
	}
	out := make([]listInfo, 0, len(h.defs))
	for _, d := range h.defs {
		info := listInfo{
			ListID:     d.ListID(),
			Name:       d.Name(),
			ByteLength: d.ByteLength(),
			Variables:  d.Variables(),
		}
		if st, ok := h.tracker.Get(d.ListID()); ok {
			info.State = &st
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"lists": out})
}

// GetValues GET /api/lists/:listId/values 最新变量值。优先读缓存，退回数据库
func (h *Handler) GetValues(c *gin.Context) {
	listID, ok := h.listID(c)
	if !ok {
		return
	}
	if _, ok := h.defs[listID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown list"})
		return
	}
	ctx := c.Request.Context()

	if h.cache != nil {
		values, err := h.cache.GetValues(ctx, listID)
		if err == nil && len(values) > 0 {
			counter, receivedAt, _, _ := h.cache.GetMeta(ctx, listID)
			c.JSON(http.StatusOK, gin.H{
				"listId":     listID,
				"source":     "cache",
				"counter":    counter,
				"receivedAt": receivedAt,
				"values":     values,
			})
			return
		}
		if err != nil {
			h.logger.Warn("value cache read failed", zap.Uint16("list", listID), zap.Error(err))
		}
	}

	if h.repo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no values received yet"})
		return
	}
	rows, err := h.repo.LatestValues(ctx, int32(listID))
	if err != nil {
		h.logger.Error("latest values query failed", zap.Uint16("list", listID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listId": listID, "source": "database", "values": rows})
}

// PostValues POST /api/lists/:listId/values 编码并发布一次完整的变量列表
func (h *Handler) PostValues(c *gin.Context) {
	listID, ok := h.listID(c)
	if !ok {
		return
	}
	if _, ok := h.defs[listID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown list"})
		return
	}
	if h.pub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "sender not running"})
		return
	}

	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	if err := h.pub.Publish(c.Request.Context(), listID, values); err != nil {
		h.logger.Error("publish failed", zap.Uint16("list", listID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "send_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listId": listID, "sent": true})
}

// GetMessages GET /api/lists/:listId/messages 最近报文日志
func (h *Handler) GetMessages(c *gin.Context) {
	listID, ok := h.listID(c)
	if !ok {
		return
	}
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "database not enabled"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	rows, err := h.repo.RecentMessages(c.Request.Context(), int32(listID), limit)
	if err != nil {
		h.logger.Error("message query failed", zap.Uint16("list", listID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listId": listID, "messages": rows})
}

// GetStats GET /api/stats 全部列表的收发统计
func (h *Handler) GetStats(c *gin.Context) {
	now := time.Now()
	states := h.tracker.Snapshot()
	type listStat struct {
		liststate.State
		Alive bool `json:"alive"`
	}
	out := make([]listStat, 0, len(states))
	for _, st := range states {
		out = append(out, listStat{State: st, Alive: h.tracker.IsAlive(st.ListID, now)})
	}
	c.JSON(http.StatusOK, gin.H{"lists": out, "timestamp": now})
}
