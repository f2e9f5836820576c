// Package server 提供管理页面和 HTTP API，只做参数校验和错误映射，业务逻辑在 pipeline 和 article 中。
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iabetor/rsswecom/internal/article"
	"github.com/iabetor/rsswecom/internal/database"
	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/pipeline"
	"github.com/iabetor/rsswecom/internal/rss"
)

//go:embed templates/*.html
var templateFS embed.FS

// Orchestrator 抓取和推送。
type Orchestrator interface {
	Ingest(ctx context.Context, feedURL string) (pipeline.IngestResult, error)
	PushBatch(ctx context.Context, feedDir, date string) (pipeline.PushResult, error)
	State() pipeline.State
}

// FeedValidator 订阅前检查 URL 是否为可解析的订阅源。
type FeedValidator interface {
	FetchAndValidate(ctx context.Context, url string) (string, error)
}

// HistoryReader 推送和抓取记录查询。
type HistoryReader interface {
	RecentPushes(ctx context.Context, limit int) ([]database.PushRecord, error)
	RecentIngests(ctx context.Context, limit int) ([]database.IngestRun, error)
}

// Options 服务依赖。History 和 Validator 可为空。
type Options struct {
	Pipeline  Orchestrator
	Store     *article.Store
	Feeds     *rss.FeedStore
	Validator FeedValidator
	History   HistoryReader
}

// Server HTTP 服务。
type Server struct {
	pipeline  Orchestrator
	store     *article.Store
	feeds     *rss.FeedStore
	validator FeedValidator
	history   HistoryReader
	engine    *gin.Engine
}

// New 创建服务并注册路由。
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil || opts.Store == nil || opts.Feeds == nil {
		return nil, errors.New("server: Pipeline、Store、Feeds 不能为空")
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:  opts.Pipeline,
		store:     opts.Store,
		feeds:     opts.Feeds,
		validator: opts.Validator,
		history:   opts.History,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(tmpl)

	s.registerPageRoutes(r)
	s.registerArticleRoutes(r)
	s.registerFeedRoutes(r)
	s.registerPushRoutes(r)
	r.GET("/api/health", s.handleHealth)

	s.engine = r
	return s, nil
}

// Handler 返回 http.Handler，供测试和自定义监听使用。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 addr 直到 ctx 取消，然后优雅关闭。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[server] 监听 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("[server] 正在关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.pipeline.State().String()})
}

// writeStoreError 把存储错误映射为状态码。
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, article.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的路径。"})
	case errors.Is(err, article.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "文章未找到。"})
	case errors.Is(err, article.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("[server] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
