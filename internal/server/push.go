package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iabetor/rsswecom/internal/article"
	"github.com/iabetor/rsswecom/internal/database"
	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/pipeline"
	"github.com/iabetor/rsswecom/internal/wecom"
)

func (s *Server) registerPushRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/fetch", s.handleFetch)
	api.POST("/push_to_wecom", s.handlePush)
	api.GET("/history", s.handleHistory)
}

type fetchRequest struct {
	URL string `json:"url"`
}

// handleFetch 同步抓取一个订阅源。
// 客户端断开不取消抓取，避免只保存了一半。
func (s *Server) handleFetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中缺少 'url'。"})
		return
	}

	result, err := s.pipeline.Ingest(context.WithoutCancel(c.Request.Context()), req.URL)
	if err != nil {
		logger.Warnf("[server] 抓取 %s 失败: %v", req.URL, err)
		c.JSON(http.StatusNotFound, gin.H{"message": "未找到新闻条目或获取源失败。", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result.Message(), "result": result})
}

type pushRequest struct {
	Date    string `json:"date"`
	FeedURL string `json:"feed_url"`
}

// handlePush 逐条推送某源某天的文章，每条间隔数秒，请求会持续整个批次。
func (s *Server) handlePush(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Date == "" || req.FeedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中缺少 'date' 或 'feed_url'。"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.pipeline.PushBatch(ctx, article.FeedDir(req.FeedURL), req.Date)
	switch {
	case errors.Is(err, pipeline.ErrNoArticles):
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("日期 %s 没有来自该源的可推送新闻。", req.Date)})
		return
	case errors.Is(err, wecom.ErrMissingKey):
		c.JSON(http.StatusInternalServerError, gin.H{"message": "企业微信机器人 webhook key 未设置。"})
		return
	case errors.Is(err, article.ErrInvalidDate), errors.Is(err, article.ErrInvalidPath):
		writeStoreError(c, err)
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error(), "result": result})
		return
	}

	status := http.StatusOK
	if result.Partial() {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"message": result.Message(), "result": result})
}

// historyResponse /api/history 的响应。
type historyResponse struct {
	Pushes  []database.PushRecord `json:"pushes"`
	Ingests []database.IngestRun  `json:"ingests"`
}

// handleHistory 返回最近的推送和抓取记录。
func (s *Server) handleHistory(c *gin.Context) {
	resp := historyResponse{Pushes: []database.PushRecord{}, Ingests: []database.IngestRun{}}
	if s.history == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须是正整数"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	var err error
	if resp.Pushes, err = s.history.RecentPushes(ctx, limit); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if resp.Ingests, err = s.history.RecentIngests(ctx, limit); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
