package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/rss"
)

const validateTimeout = 20 * time.Second

func (s *Server) registerFeedRoutes(r *gin.Engine) {
	g := r.Group("/api/rss_feeds")
	g.GET("", s.handleListFeeds)
	g.POST("", s.handleAddFeed)
	g.DELETE("", s.handleDeleteFeed)
}

func (s *Server) handleListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, s.feeds.URLs())
}

type feedRequest struct {
	URL string `json:"url"`
}

// handleAddFeed 验证 URL 可以解析后加入订阅列表。
func (s *Server) handleAddFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中缺少 'url'。"})
		return
	}
	url := strings.TrimSpace(req.URL)

	name := url
	if s.validator != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), validateTimeout)
		defer cancel()
		title, err := s.validator.FetchAndValidate(ctx, url)
		if err != nil {
			logger.Warnf("[server] 订阅源验证失败 %s: %v", url, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "无法解析该订阅源: " + err.Error()})
			return
		}
		name = title
	}

	feed := rss.Feed{URL: url, Name: name}
	if err := s.feeds.Add(feed); err != nil {
		if errors.Is(err, rss.ErrFeedExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[server] 已订阅 %s (%s)", url, name)
	c.JSON(http.StatusCreated, gin.H{"message": "订阅成功。", "url": url, "name": name})
}

func (s *Server) handleDeleteFeed(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中缺少 'url'。"})
		return
	}
	if !s.feeds.Delete(url) {
		c.JSON(http.StatusNotFound, gin.H{"error": "订阅源不存在。"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已取消订阅。"})
}
