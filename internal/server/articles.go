package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iabetor/rsswecom/internal/article"
)

func (s *Server) registerArticleRoutes(r *gin.Engine) {
	r.GET("/api/articles", s.handleListArticles)

	g := r.Group("/api/article")
	g.GET("/*path", s.handleGetArticle)
	g.PUT("/*path", s.handleUpdateArticle)
	g.DELETE("/*path", s.handleDeleteArticle)
}

// handleListArticles 列出某个源的文章，按日期倒序分组。
func (s *Server) handleListArticles(c *gin.Context) {
	feedURL := c.Query("feed_url")
	if feedURL == "" {
		c.JSON(http.StatusOK, []article.DateGroup{})
		return
	}
	groups, err := s.store.ListByFeed(article.FeedDir(feedURL))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) handleGetArticle(c *gin.Context) {
	content, err := s.store.Read(articlePath(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raw": content})
}

type updateArticleRequest struct {
	Content *string `json:"content"`
}

func (s *Server) handleUpdateArticle(c *gin.Context) {
	// 先校验路径，非法路径不解析请求体
	if _, err := s.store.Resolve(articlePath(c)); err != nil {
		writeStoreError(c, err)
		return
	}

	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求中缺少 'content'。"})
		return
	}
	if err := s.store.Write(articlePath(c), *req.Content); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文章更新成功。"})
}

func (s *Server) handleDeleteArticle(c *gin.Context) {
	if err := s.store.Delete(articlePath(c)); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文章删除成功。"})
}
