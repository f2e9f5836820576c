// Package rss 提供订阅源抓取、条目规范化和订阅源列表管理。
package rss

import (
	"fmt"
	"time"
)

const (
	// DefaultTitle 条目缺少标题时使用。
	DefaultTitle = "无标题"
	// DefaultBody 条目既无正文也无摘要时使用。
	DefaultBody = "无摘要"
)

// Feed 订阅源信息。
type Feed struct {
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	AddedAt     time.Time `json:"added_at"`
	LastFetched time.Time `json:"last_fetched,omitempty"`
}

// Entry 一次抓取中规范化后的条目，只在抓取过程中存在。
type Entry struct {
	Title string
	// Published 为 nil 表示源中没有发布时间。
	Published *time.Time
	// Body 优先取完整内容，其次摘要。
	Body string
	Link string
}

// FetchError 传输层失败：超时、DNS、非 2xx 状态码等。
type FetchError struct {
	URL    string
	Status int // 0 表示未收到响应
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("获取源 %s 失败: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("获取源 %s 失败: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError 源内容无法解析为 RSS/Atom/JSON Feed。
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析源 %s 失败: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
