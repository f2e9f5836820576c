package article

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iabetor/rsswecom/internal/rss"
)

var fixedNow = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), time.UTC)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	return s
}

func published(y int, m time.Month, d int) *time.Time {
	ts := time.Date(y, m, d, 8, 0, 0, 0, time.UTC)
	return &ts
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	files, _ := filepath.Glob(filepath.Join(dir, "*.md"))
	return len(files)
}

func TestPersistIdempotent(t *testing.T) {
	s := newTestStore(t)
	entries := []rss.Entry{
		{Title: "第一条", Published: published(2025, 1, 5), Body: "正文一"},
		{Title: "第二条", Published: published(2025, 1, 5), Body: "正文二"},
		{Title: "第三条", Published: published(2025, 1, 6), Body: "正文三"},
	}

	for _, e := range entries {
		out, err := s.Persist("feed", e)
		if err != nil {
			t.Fatalf("Persist 失败: %v", err)
		}
		if out != Saved {
			t.Errorf("首次保存 %q 应为 saved，实际 %v", e.Title, out)
		}
	}
	for _, e := range entries {
		out, err := s.Persist("feed", e)
		if err != nil {
			t.Fatalf("Persist 失败: %v", err)
		}
		if out != Skipped {
			t.Errorf("重复保存 %q 应为 skipped，实际 %v", e.Title, out)
		}
	}

	if n := countFiles(t, filepath.Join(s.Root(), "feed", "2025-01-05")); n != 2 {
		t.Errorf("2025-01-05 应有 2 个文件，实际 %d", n)
	}
	if n := countFiles(t, filepath.Join(s.Root(), "feed", "2025-01-06")); n != 1 {
		t.Errorf("2025-01-06 应有 1 个文件，实际 %d", n)
	}
}

func TestPersistKeywordCollision(t *testing.T) {
	tests := []struct {
		first, second string
	}{
		{"大佬 今日新闻", "今日新闻"}, // 去除关键词后留下的空白被折叠
		{"今日新闻佬友们", "今日新闻"},
		{"今日佬们新闻", "今日新闻"},
	}
	for _, tc := range tests {
		s := newTestStore(t)
		if out, _ := s.Persist("feed", rss.Entry{Title: tc.first, Published: published(2025, 2, 1), Body: "x"}); out != Saved {
			t.Fatalf("%q 应保存", tc.first)
		}
		out, err := s.Persist("feed", rss.Entry{Title: tc.second, Published: published(2025, 2, 1), Body: "y"})
		if err != nil {
			t.Fatalf("Persist 失败: %v", err)
		}
		if out != Skipped {
			t.Errorf("%q 与 %q 清洗后相同，应跳过", tc.first, tc.second)
		}
	}
}

func TestPersistIdempotentWhitespaceTitles(t *testing.T) {
	titles := []string{" 标题 ", "a\nb", "大佬 Hello\nWorld", "Trailing ", "  ", "佬"}
	for _, title := range titles {
		s := newTestStore(t)
		e := rss.Entry{Title: title, Published: published(2025, 2, 2), Body: "x"}
		if out, err := s.Persist("feed", e); err != nil || out != Saved {
			t.Fatalf("%q 首次保存应为 saved，实际 %v, %v", title, out, err)
		}
		out, err := s.Persist("feed", e)
		if err != nil {
			t.Fatalf("Persist 失败: %v", err)
		}
		if out != Skipped {
			t.Errorf("%q 重复保存应为 skipped，实际 %v", title, out)
		}
		if n := countFiles(t, filepath.Join(s.Root(), "feed", "2025-02-02")); n != 1 {
			t.Errorf("%q 应只有 1 个文件，实际 %d", title, n)
		}
	}
}

func TestPersistTitleIsSingleLine(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Persist("feed", rss.Entry{Title: "大佬 Hello\n  World ", Published: published(2025, 2, 3), Body: "x"}); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "feed", "2025-02-03", "news_1.md"))
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Hello World\n\n") {
		t.Errorf("标题行应折叠为一行: %q", data)
	}
}

func TestPersistDocumentFormat(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Persist("feed", rss.Entry{
		Title:     "佬友们早上好",
		Published: published(2025, 4, 1),
		Body:      "<p>大佬的分享</p>",
	})
	if err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), "feed", "2025-04-01", "news_1.md"))
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	want := "# 早上好\n\n**发布日期**: 2025-04-01\n\n---\n\n<p>的分享</p>\n"
	if string(data) != want {
		t.Errorf("文档内容不符:\n得到 %q\n期望 %q", data, want)
	}
}

func TestPersistMissingDate(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Persist("feed", rss.Entry{Title: "无日期", Body: "正文"}); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), "feed", "2025-03-09", "news_1.md"))
	if err != nil {
		t.Fatalf("缺少日期的条目应保存到今天: %v", err)
	}
	if !strings.Contains(string(data), "**发布日期**: N/A\n") {
		t.Errorf("日期行应为 N/A: %q", data)
	}
}

func TestPersistSequenceSkipsOccupied(t *testing.T) {
	s := newTestStore(t)
	dateDir := filepath.Join(s.Root(), "feed", "2025-05-05")
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		t.Fatal(err)
	}
	// news_1 被删除后只剩 news_2，count+1 = 2 已被占用
	if err := os.WriteFile(filepath.Join(dateDir, "news_2.md"), []byte("# 旧文章\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Persist("feed", rss.Entry{Title: "新文章", Published: published(2025, 5, 5), Body: "b"}); err != nil {
		t.Fatalf("Persist 失败: %v", err)
	}

	old, _ := os.ReadFile(filepath.Join(dateDir, "news_2.md"))
	if string(old) != "# 旧文章\n" {
		t.Errorf("已有文件不应被覆盖: %q", old)
	}
	if _, err := os.Stat(filepath.Join(dateDir, "news_3.md")); err != nil {
		t.Errorf("新文章应保存为 news_3.md: %v", err)
	}
}

func TestPersistRejectsEscapingFeedDir(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Persist("..", rss.Entry{Title: "x"}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("期望 ErrInvalidPath，实际 %v", err)
	}
}

func TestFeedDir(t *testing.T) {
	got := FeedDir("https://a.b/c?x=1")
	if got != "a.b_c_x=1" {
		t.Errorf("FeedDir = %q", got)
	}
	if strings.ContainsAny(got, `/:?*<>|"\`) {
		t.Errorf("FeedDir 结果包含非法字符: %q", got)
	}

	long := FeedDir("http://example.com/" + strings.Repeat("路", 200))
	if n := len([]rune(long)); n != 100 {
		t.Errorf("FeedDir 应截断到 100 个字符，实际 %d", n)
	}
	if FeedDir("https://a.b/c") != FeedDir("https://a.b/c") {
		t.Error("FeedDir 应是确定性的")
	}
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"大佬们好":   "们好",
		"佬友们好":   "好",
		"各位佬":    "各位",
		"没有关键词": "没有关键词",
	}
	for in, want := range tests {
		if got := CleanText(in); got != want {
			t.Errorf("CleanText(%q) = %q, 期望 %q", in, got, want)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" 标题 ", "标题"},
		{"a\nb", "a b"},
		{"大佬 Hello\tWorld", "Hello World"},
		{"佬", ""},
	}
	for _, tc := range tests {
		if got := CleanTitle(tc.in); got != tc.want {
			t.Errorf("CleanTitle(%q) = %q, 期望 %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	s := newTestStore(t)

	bad := []string{"", "../../etc/passwd", "/../../etc/passwd", "feed/../../x", ".", "feed/.."}
	for _, p := range bad {
		if _, err := s.Resolve(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Resolve(%q) 应返回 ErrInvalidPath，实际 %v", p, err)
		}
	}

	got, err := s.Resolve("/feed/2025-01-01/news_1.md")
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	want := filepath.Join(s.Root(), "feed", "2025-01-01", "news_1.md")
	if got != want {
		t.Errorf("Resolve = %q, 期望 %q", got, want)
	}
}

func TestReadWriteDelete(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Persist("feed", rss.Entry{Title: "标题", Published: published(2025, 1, 1), Body: "正文"}); err != nil {
		t.Fatal(err)
	}
	rel := "feed/2025-01-01/news_1.md"

	content, err := s.Read(rel)
	if err != nil {
		t.Fatalf("Read 失败: %v", err)
	}
	if !strings.HasPrefix(content, "# 标题\n") {
		t.Errorf("Read 内容不符: %q", content)
	}

	if err := s.Write(rel, "# 新标题\n"); err != nil {
		t.Fatalf("Write 失败: %v", err)
	}
	if content, _ := s.Read(rel); content != "# 新标题\n" {
		t.Errorf("Write 后内容不符: %q", content)
	}

	if err := s.Write("feed/2025-01-01/news_9.md", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("写入不存在的文件应返回 ErrNotFound，实际 %v", err)
	}
	if _, err := s.Read("feed/2025-01-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("读取目录应返回 ErrNotFound，实际 %v", err)
	}
	if _, err := s.Read("../../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("越界读取应返回 ErrInvalidPath，实际 %v", err)
	}

	if err := s.Delete(rel); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	if _, err := s.Read(rel); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后读取应返回 ErrNotFound，实际 %v", err)
	}
	if err := s.Delete(rel); !errors.Is(err, ErrNotFound) {
		t.Errorf("重复删除应返回 ErrNotFound，实际 %v", err)
	}
}

func TestListByFeed(t *testing.T) {
	s := newTestStore(t)
	entries := []rss.Entry{
		{Title: "一月一", Published: published(2025, 1, 1), Body: "a"},
		{Title: "一月二", Published: published(2025, 1, 2), Body: "b"},
		{Title: "一月二之二", Published: published(2025, 1, 2), Body: "c"},
	}
	for _, e := range entries {
		if _, err := s.Persist("feed", e); err != nil {
			t.Fatal(err)
		}
	}
	// 非日期目录和非 news_ 文件应忽略
	_ = os.MkdirAll(filepath.Join(s.Root(), "feed", "misc"), 0755)
	_ = os.WriteFile(filepath.Join(s.Root(), "feed", "misc", "news_1.md"), []byte("# x\n"), 0644)
	_ = os.WriteFile(filepath.Join(s.Root(), "feed", "2025-01-01", "notes.md"), []byte("# y\n"), 0644)
	// 首行不是标题
	_ = os.WriteFile(filepath.Join(s.Root(), "feed", "2025-01-01", "news_5.md"), []byte("plain\n"), 0644)

	groups, err := s.ListByFeed("feed")
	if err != nil {
		t.Fatalf("ListByFeed 失败: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("应有 2 个日期分组，实际 %d", len(groups))
	}
	if groups[0].Date != "2025-01-02" || groups[1].Date != "2025-01-01" {
		t.Errorf("日期应倒序: %s, %s", groups[0].Date, groups[1].Date)
	}
	if len(groups[0].Articles) != 2 || groups[0].Articles[0].Path != "feed/2025-01-02/news_1.md" {
		t.Errorf("分组内容不符: %+v", groups[0].Articles)
	}
	if groups[0].Articles[1].Title != "一月二之二" {
		t.Errorf("标题不符: %+v", groups[0].Articles[1])
	}
	last := groups[1].Articles
	if len(last) != 2 || last[1].Title != rss.DefaultTitle {
		t.Errorf("首行非标题时应使用默认标题: %+v", last)
	}

	empty, err := s.ListByFeed("missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("不存在的源应返回空列表: %v %v", empty, err)
	}
}

func TestListBatch(t *testing.T) {
	s := newTestStore(t)
	dateDir := filepath.Join(s.Root(), "feed", "2025-06-01")
	_ = os.MkdirAll(dateDir, 0755)
	for _, name := range []string{"news_2.md", "news_10.md", "news_1.md"} {
		_ = os.WriteFile(filepath.Join(dateDir, name), []byte("# t\n"), 0644)
	}

	refs, err := s.ListBatch("feed", "2025-06-01")
	if err != nil {
		t.Fatalf("ListBatch 失败: %v", err)
	}
	want := []string{"feed/2025-06-01/news_1.md", "feed/2025-06-01/news_10.md", "feed/2025-06-01/news_2.md"}
	if len(refs) != len(want) {
		t.Fatalf("数量不符: %+v", refs)
	}
	for i, r := range refs {
		if r.Path != want[i] {
			t.Errorf("第 %d 项 = %s, 期望 %s", i, r.Path, want[i])
		}
	}

	if _, err := s.ListBatch("feed", "2025/06/01"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("非法日期应返回 ErrInvalidDate，实际 %v", err)
	}
	if refs, err := s.ListBatch("feed", "2024-01-01"); err != nil || len(refs) != 0 {
		t.Errorf("空批次应返回空列表: %v %v", refs, err)
	}
}
