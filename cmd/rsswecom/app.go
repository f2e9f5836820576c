package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/iabetor/rsswecom/internal/article"
	"github.com/iabetor/rsswecom/internal/config"
	"github.com/iabetor/rsswecom/internal/database"
	"github.com/iabetor/rsswecom/internal/httpx"
	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/pipeline"
	"github.com/iabetor/rsswecom/internal/rss"
	"github.com/iabetor/rsswecom/internal/wecom"
)

// app 装配好的各组件。
type app struct {
	cfg      *config.Config
	loc      *time.Location
	store    *article.Store
	feeds    *rss.FeedStore
	fetcher  *rss.Fetcher
	db       *database.DB
	pipeline *pipeline.Pipeline
}

// loadConfig 读取配置。默认路径的文件不存在时只使用环境变量和默认值。
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Load("")
		}
	}
	return config.Load(path)
}

func newApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	loc := time.Local
	if cfg.Storage.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Storage.Timezone)
		if err != nil {
			return nil, fmt.Errorf("无效的时区 %s: %w", cfg.Storage.Timezone, err)
		}
	}

	store, err := article.NewStore(cfg.Storage.Root, loc)
	if err != nil {
		return nil, err
	}

	feeds, err := rss.NewFeedStore(cfg.Storage.DataDir, cfg.Feeds)
	if err != nil {
		return nil, err
	}

	proxy := httpx.Proxy{HTTP: cfg.Proxy.HTTP, HTTPS: cfg.Proxy.HTTPS, NoProxy: cfg.Proxy.NoProxy}
	fetcher := rss.NewFetcher(rss.FetcherOptions{
		Timeout:   time.Duration(cfg.Fetch.Timeout) * time.Second,
		UserAgent: cfg.Fetch.UserAgent,
		Proxy:     proxy,
	})
	notifier := wecom.NewNotifier(cfg.WeCom.WebhookKey, cfg.WeCom.WebhookURL,
		time.Duration(cfg.WeCom.Timeout)*time.Second, proxy)
	if !notifier.Configured() {
		logger.Warnf("[main] 未配置 wecom.webhook_key，推送将不可用")
	}

	db, err := database.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	p, err := pipeline.New(pipeline.Options{
		Store:      store,
		Source:     fetcher,
		Sender:     notifier,
		Transcoder: wecom.NewTranscoder(cfg.App.BaseURL),
		Pacer:      pipeline.NewIntervalPacer(time.Duration(cfg.WeCom.PushInterval) * time.Second),
		Recorder:   db,
		Feeds:      feeds,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("[main] 文章目录 %s，订阅源 %d 个，记录库 %s", store.Root(), len(feeds.URLs()), db.Path())
	return &app{
		cfg:      cfg,
		loc:      loc,
		store:    store,
		feeds:    feeds,
		fetcher:  fetcher,
		db:       db,
		pipeline: p,
	}, nil
}

// Close 释放数据库并刷新日志。
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.Warnf("[main] 关闭数据库失败: %v", err)
	}
	logger.Sync()
}
