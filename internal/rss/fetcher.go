package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/iabetor/rsswecom/internal/httpx"
	"github.com/iabetor/rsswecom/internal/logger"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "rsswecom/1.0 RSS Reader"
	maxFeedBytes        = 16 << 20
)

// Fetcher 负责下载并解析订阅源，不做重试和缓存。
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// FetcherOptions 抓取器配置。
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	Proxy     httpx.Proxy
}

// NewFetcher 创建订阅源抓取器。
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Fetcher{
		client:    httpx.NewClient(timeout, opts.Proxy),
		userAgent: ua,
	}
}

// Fetch 抓取 url 并返回按源顺序排列的条目。
// 失败时返回 *FetchError 或 *ParseError，且不返回任何条目。
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	feed, err := f.parseFeed(ctx, url)
	if err != nil {
		logger.Warnf("[rss] %v", err)
		return nil, err
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, convertItem(item))
	}
	logger.Infof("[rss] 从 %s 获取到 %d 个条目", url, len(entries))
	return entries, nil
}

// FetchAndValidate 抓取指定 URL，验证有效性并返回源标题。
func (f *Fetcher) FetchAndValidate(ctx context.Context, url string) (string, error) {
	feed, err := f.parseFeed(ctx, url)
	if err != nil {
		return "", err
	}
	if feed.Title == "" {
		return url, nil
	}
	return feed.Title, nil
}

// parseFeed 自行发起请求再交给 gofeed 解析，以便区分传输错误和解析错误，
// 并绕过部分站点错误的 Content-Type。
func (f *Fetcher) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	// 先完整读取，读取中途断开属于传输错误
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, Err: err}
	}

	// gofeed.Parser 内部有解析状态，每次新建以便并发调用
	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return feed, nil
}

// convertItem 将 gofeed 条目转换为 Entry。
func convertItem(item *gofeed.Item) Entry {
	title := item.Title
	if title == "" {
		title = DefaultTitle
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	if body == "" {
		body = DefaultBody
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		published = &t
	}

	return Entry{
		Title:     title,
		Published: published,
		Body:      body,
		Link:      item.Link,
	}
}
