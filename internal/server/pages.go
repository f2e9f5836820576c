package server

import (
	"bytes"
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// 文章正文保留了源中的 HTML 片段，需要原样输出。
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

var headingPattern = regexp.MustCompile(`(?m)^#\s*(.*)`)

func (s *Server) registerPageRoutes(r *gin.Engine) {
	r.GET("/", s.handleIndex)
	r.GET("/article/*path", s.handleViewArticle)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"feeds": s.feeds.URLs()})
}

// handleViewArticle 公开的文章页面，"点击查看全文"链接指向这里。
func (s *Server) handleViewArticle(c *gin.Context) {
	content, err := s.store.Read(articlePath(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}

	title := "文章"
	if m := headingPattern.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.HTML(http.StatusOK, "article.html", gin.H{
		"title":   title,
		"content": template.HTML(buf.String()),
	})
}

// articlePath 取出通配参数，去掉开头的斜杠。
func articlePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}
