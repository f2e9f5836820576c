package wecom

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const testHeader = "# 标题\n\n**发布日期**: 2025-01-02\n\n"

func TestHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<p>Hello <b>world</b><br>Next <a href="http://x">link</a></p>`, "Hello **world**\nNext [link](http://x)"},
		{`<img class="c" src="http://img/1.png" alt="">`, "![](http://img/1.png)"},
		{"<ul><li>一</li><li>二</li></ul>", "- 一\n- 二"},
		{"<STRONG>粗</STRONG> <em>斜</em>", "**粗** *斜*"},
		{"<div>a</div>\n\n\n\n<span>b</span>", "a\n\nb"},
		{`<a href="http://x" target="_blank">多
行</a>`, "[多\n行](http://x)"},
	}
	for _, tc := range tests {
		if got := HTMLToMarkdown(tc.in); got != tc.want {
			t.Errorf("HTMLToMarkdown(%q) = %q, 期望 %q", tc.in, got, tc.want)
		}
	}
}

func TestTranscodeShortDocument(t *testing.T) {
	doc := testHeader + "---\n\n<p>Hello <b>world</b><br>Next <a href=\"http://x\">link</a></p>\n"
	msg := NewTranscoder("https://news.example.com/").Transcode(doc, "feed/2025-01-02/news_1.md")

	if msg.MsgType != "markdown_v2" {
		t.Errorf("msgtype = %q", msg.MsgType)
	}
	want := "# 标题\n\n**发布日期**: 2025-01-02\n\n---\n\nHello **world**\nNext [link](http://x)"
	if msg.MarkdownV2.Content != want {
		t.Errorf("内容不符:\n得到 %q\n期望 %q", msg.MarkdownV2.Content, want)
	}
}

func TestTranscodeWithoutSeparator(t *testing.T) {
	msg := NewTranscoder("").Transcode("只有一行", "x.md")
	if msg.MarkdownV2.Content != "只有一行\n\n---\n\n" {
		t.Errorf("内容不符: %q", msg.MarkdownV2.Content)
	}
}

func TestTranscodeHardLimit(t *testing.T) {
	doc := testHeader + "---\n\n" + strings.Repeat("héllo wörld ", 1000)
	content := NewTranscoder("").Transcode(doc, "feed/2025-01-02/news_1.md").MarkdownV2.Content

	if len(content) > HardLimit {
		t.Errorf("内容超过 %d 字节: %d", HardLimit, len(content))
	}
	if !strings.HasSuffix(content, truncatedSuffix) {
		t.Errorf("应附加截断提示: %q", content[len(content)-40:])
	}
	if !utf8.ValidString(content) {
		t.Error("截断后出现不完整的 UTF-8 字符")
	}
}

func TestTranscodeReadMore(t *testing.T) {
	tr := NewTranscoder("https://news.example.com/")
	ref := "feed/2025-01-02/news_1.md"
	link := tr.ReadMoreLink(ref)
	if link != "\n\n[...点击查看全文](https://news.example.com/article/feed/2025-01-02/news_1.md)" {
		t.Fatalf("链接不符: %q", link)
	}

	doc := testHeader + "---\n\n" + strings.Repeat("héllo wörld ", 300)
	content := tr.Transcode(doc, ref).MarkdownV2.Content

	if len(content) > SoftLimit {
		t.Errorf("内容超过 %d 字节: %d", SoftLimit, len(content))
	}
	if !strings.HasSuffix(content, link) {
		t.Errorf("应附加查看全文链接: %q", content)
	}
	if !utf8.ValidString(content) {
		t.Error("截断后出现不完整的 UTF-8 字符")
	}
}

func TestTranscodeNewlineBackoff(t *testing.T) {
	tr := NewTranscoder("https://news.example.com")
	ref := "feed/2025-01-02/news_1.md"
	doc := testHeader + "---\n\n" + strings.Repeat("abcdefghi\n", 300)

	content := tr.Transcode(doc, ref).MarkdownV2.Content
	text := strings.TrimSuffix(content, tr.ReadMoreLink(ref))
	if !strings.HasSuffix(text, "\nabcdefghi") {
		t.Errorf("应退回到最后一个换行处: %q", text[len(text)-20:])
	}
}

func TestTranscodeLongLinkClampsBudget(t *testing.T) {
	tr := NewTranscoder("https://news.example.com")
	ref := strings.Repeat("r", 1100)
	doc := testHeader + "---\n\n" + strings.Repeat("x", 2000)

	content := tr.Transcode(doc, ref).MarkdownV2.Content
	if content != tr.ReadMoreLink(ref) {
		t.Errorf("链接超过预算时内容应只剩链接，实际长度 %d", len(content))
	}
}

func TestTranscodeLinkOverHardLimit(t *testing.T) {
	tr := NewTranscoder("https://news.example.com")
	ref := strings.Repeat("r", HardLimit)
	doc := testHeader + "---\n\n" + strings.Repeat("x", 2000)

	content := tr.Transcode(doc, ref).MarkdownV2.Content
	if strings.Contains(content, "点击查看全文") {
		t.Error("链接超过硬上限时不应附加")
	}
	if len(content) > HardLimit {
		t.Errorf("内容超过 %d 字节: %d", HardLimit, len(content))
	}
}

func TestTruncate(t *testing.T) {
	// "é" 占 2 字节，截在中间时应丢弃
	if got := truncate("aé", 2); got != "a" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", -5); got != "" {
		t.Errorf("负数预算应视为 0: %q", got)
	}
	// 换行在前半部分，不回退
	if got := truncate("a\nbcdefgh", 100); got != "a\nbcdefgh" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefgh\ni", 100); got != "abcdefgh" {
		t.Errorf("truncate = %q", got)
	}
}
