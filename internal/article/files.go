package article

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/rss"
)

var (
	// ErrInvalidPath 路径解析后不在存储根目录内。
	ErrInvalidPath = errors.New("无效的路径")
	// ErrNotFound 文章不存在。
	ErrNotFound = errors.New("文章未找到")
	// ErrInvalidDate 日期不是 YYYY-MM-DD。
	ErrInvalidDate = errors.New("无效的日期")
)

// Ref 指向一篇已保存的文章，Path 为相对存储根目录的斜杠路径。
type Ref struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// DateGroup 某一天的文章。
type DateGroup struct {
	Date     string `json:"date"`
	Articles []Ref  `json:"articles"`
}

// Resolve 将相对路径解析为存储根目录下的绝对路径。
// 解析结果不在根目录内时返回 ErrInvalidPath，此时不会访问文件系统。
func (s *Store) Resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", ErrInvalidPath
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(s.root, abs)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return abs, nil
}

// RelPath 返回绝对路径相对存储根目录的斜杠形式。
func (s *Store) RelPath(abs string) string {
	r, err := filepath.Rel(s.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

func (s *Store) resolveFile(rel string) (string, error) {
	abs, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return abs, nil
}

// Read 读取文章原文。
func (s *Store) Read(rel string) (string, error) {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("读取文件时出错: %w", err)
	}
	return string(data), nil
}

// Write 整体替换已存在文章的内容。
func (s *Store) Write(rel, content string) error {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return fmt.Errorf("写入文件时出错: %w", err)
	}
	logger.Infof("[article] 已更新 %s", rel)
	return nil
}

// Delete 删除文章。
func (s *Store) Delete(rel string) error {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("删除文件时出错: %w", err)
	}
	logger.Infof("[article] 已删除 %s", rel)
	return nil
}

// checkFeedDir 拒绝会跳出根目录的源目录名，如 FeedDir("..")。
func checkFeedDir(feedDir string) error {
	if feedDir == "" || feedDir == "." || feedDir == ".." || strings.ContainsAny(feedDir, `/\`) {
		return ErrInvalidPath
	}
	return nil
}

// ListByFeed 列出一个源的所有文章，按日期倒序分组，组内按路径排序。
// 源目录不存在时返回空列表。
func (s *Store) ListByFeed(feedDir string) ([]DateGroup, error) {
	if err := checkFeedDir(feedDir); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.root, feedDir, "[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]", "news_*.md")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]Ref)
	for _, f := range files {
		date := filepath.Base(filepath.Dir(f))
		first, err := readFirstLine(f)
		if err != nil {
			logger.Warnf("[article] 读取文件 %s 时出错: %v", f, err)
			continue
		}
		title := rss.DefaultTitle
		if strings.HasPrefix(first, "# ") {
			title = first[2:]
		}
		byDate[date] = append(byDate[date], Ref{Path: s.RelPath(f), Title: title})
	}

	groups := make([]DateGroup, 0, len(byDate))
	for date, refs := range byDate {
		sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
		groups = append(groups, DateGroup{Date: date, Articles: refs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups, nil
}

// ListBatch 列出某源某天的文章，按路径字典序排列（news_10 在 news_2 之前）。
func (s *Store) ListBatch(feedDir, date string) ([]Ref, error) {
	if err := checkFeedDir(feedDir); err != nil {
		return nil, err
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}

	files, err := filepath.Glob(filepath.Join(s.root, feedDir, date, "news_*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	refs := make([]Ref, 0, len(files))
	for _, f := range files {
		refs = append(refs, Ref{Path: s.RelPath(f)})
	}
	return refs, nil
}
