// Package article 管理按订阅源和日期组织的 markdown 文章文件。
//
// 目录布局：<root>/<FeedDir>/<YYYY-MM-DD>/news_<n>.md，n 从 1 开始。
// 同一源同一天内清洗后的标题不重复。目录树不加锁，并发写同一天可能
// 分配到相同序号，调用方需保证同一时间只有一个抓取在写。
package article

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/rss"
)

// DateLayout 日期目录名格式。
const DateLayout = "2006-01-02"

// Separator 分隔文章头部（标题和日期）与正文。
const Separator = "---\n\n"

// Outcome 单个条目的保存结果。
type Outcome int

const (
	// Saved 写入了新文件。
	Saved Outcome = iota
	// Skipped 当天已有同名文章，未写入。
	Skipped
)

func (o Outcome) String() string {
	if o == Saved {
		return "saved"
	}
	return "skipped"
}

// PersistError 写入文章失败。
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("保存文件 %s 时出错: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store 文章存储。
type Store struct {
	root string
	loc  *time.Location
	now  func() time.Time
}

// NewStore 创建以 root 为根目录的存储。loc 为 nil 时使用本地时区计算日期。
func NewStore(root string, loc *time.Location) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析存储目录失败: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{root: abs, loc: loc, now: time.Now}, nil
}

// Root 返回存储根目录的绝对路径。
func (s *Store) Root() string { return s.root }

// Persist 保存一个条目。当天已存在清洗后同名的文章时返回 Skipped。
func (s *Store) Persist(feedDir string, e rss.Entry) (Outcome, error) {
	if err := checkFeedDir(feedDir); err != nil {
		return Skipped, err
	}
	date := s.now().In(s.loc)
	dateLine := "N/A"
	if e.Published != nil {
		date = e.Published.In(s.loc)
		dateLine = date.Format(DateLayout)
	}
	dateStr := date.Format(DateLayout)

	dateDir := filepath.Join(s.root, feedDir, dateStr)
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return Skipped, &PersistError{Path: dateDir, Err: err}
	}

	cleanedTitle := CleanTitle(e.Title)

	existing, err := filepath.Glob(filepath.Join(dateDir, "*.md"))
	if err != nil {
		return Skipped, &PersistError{Path: dateDir, Err: err}
	}
	for _, f := range existing {
		first, err := readFirstLine(f)
		if err != nil {
			logger.Warnf("[article] 检查文件 %s 时出错: %v", f, err)
			continue
		}
		if title, ok := headingTitle(first); ok && title == cleanedTitle {
			logger.Infof("[article] 新闻条目 '%s' 在 %s 已存在，跳过", e.Title, dateStr)
			return Skipped, nil
		}
	}

	path := nextFreePath(dateDir, len(existing)+1)
	content := Compose(cleanedTitle, dateLine, CleanText(e.Body))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		logger.Errorf("[article] 保存文件 %s 时出错: %v", path, err)
		return Skipped, &PersistError{Path: path, Err: err}
	}
	logger.Infof("[article] 已将新闻条目保存至 %s", path)
	return Saved, nil
}

// nextFreePath 从 n 开始找第一个未被占用的 news_<n>.md。
// 手动删除过文章时 count+1 可能已被占用，不能覆盖。
func nextFreePath(dateDir string, n int) string {
	for {
		p := filepath.Join(dateDir, fmt.Sprintf("news_%d.md", n))
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
		n++
	}
}

// Compose 生成文章文档。
func Compose(title, dateLine, body string) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("**发布日期**: " + dateLine + "\n\n")
	sb.WriteString(Separator)
	sb.WriteString(body + "\n")
	return sb.String()
}

// headingTitle 取出标题行中的标题，按写入时的规则清洗，非标题行返回 ok=false。
func headingTitle(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	return CleanTitle(strings.TrimPrefix(line, "#")), true
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
