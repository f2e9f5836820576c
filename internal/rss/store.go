package rss

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iabetor/rsswecom/internal/logger"
)

// ErrFeedExists 订阅源 URL 已存在。
var ErrFeedExists = errors.New("该订阅源已存在")

// FeedStore 订阅源列表，持久化为 JSON 文件。
type FeedStore struct {
	mu       sync.RWMutex
	filePath string
	feeds    []Feed
}

// NewFeedStore 创建订阅源存储。只有列表文件尚不存在时才写入 seeds，
// 之后以文件为准，取消订阅的源重启后不会恢复。
func NewFeedStore(dataDir string, seeds []string) (*FeedStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	s := &FeedStore{
		filePath: filepath.Join(dataDir, "rss_feeds.json"),
		feeds:    make([]Feed, 0),
	}
	found, err := s.load()
	if err != nil {
		logger.Warnf("[rss] 加载订阅源数据失败（将使用空列表）: %v", err)
		s.feeds = make([]Feed, 0)
	}
	if found {
		return s, nil
	}

	for _, u := range seeds {
		if s.indexOf(u) < 0 {
			s.feeds = append(s.feeds, Feed{URL: u, Name: u, AddedAt: time.Now()})
		}
	}
	if len(s.feeds) > 0 {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("保存订阅源失败: %w", err)
		}
		logger.Infof("[rss] 初始化订阅源 %d 个", len(s.feeds))
	}
	return s, nil
}

// load 读取列表文件，返回文件是否存在。
func (s *FeedStore) load() (bool, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return true, err
	}
	return true, json.Unmarshal(data, &s.feeds)
}

func (s *FeedStore) save() error {
	data, err := json.MarshalIndent(s.feeds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

func (s *FeedStore) indexOf(url string) int {
	for i, f := range s.feeds {
		if f.URL == url {
			return i
		}
	}
	return -1
}

// Add 添加订阅源，URL 已存在时返回 ErrFeedExists。
func (s *FeedStore) Add(feed Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(feed.URL) >= 0 {
		return ErrFeedExists
	}
	if feed.Name == "" {
		feed.Name = feed.URL
	}
	if feed.AddedAt.IsZero() {
		feed.AddedAt = time.Now()
	}

	s.feeds = append(s.feeds, feed)
	return s.save()
}

// List 按添加顺序列出所有订阅源。
func (s *FeedStore) List() []Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Feed, len(s.feeds))
	copy(result, s.feeds)
	return result
}

// URLs 返回所有订阅源地址。
func (s *FeedStore) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.feeds))
	for _, f := range s.feeds {
		urls = append(urls, f.URL)
	}
	return urls
}

// Delete 删除订阅源，不影响已保存的文章。
func (s *FeedStore) Delete(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(url)
	if i < 0 {
		return false
	}
	s.feeds = append(s.feeds[:i], s.feeds[i+1:]...)
	if err := s.save(); err != nil {
		logger.Warnf("[rss] 保存订阅源失败: %v", err)
	}
	return true
}

// UpdateLastFetched 更新订阅源的最后抓取时间，未订阅的 URL 忽略。
func (s *FeedStore) UpdateLastFetched(url string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(url); i >= 0 {
		s.feeds[i].LastFetched = t
		if err := s.save(); err != nil {
			logger.Warnf("[rss] 保存订阅源失败: %v", err)
		}
	}
}
