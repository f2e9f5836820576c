// Package wecom 把文章转换为企业微信群机器人 markdown_v2 消息并发送。
package wecom

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// SoftLimit 超过该字节数且配置了站点地址时，截断并附加"点击查看全文"链接。
	SoftLimit = 1024
	// HardLimit 企业微信 markdown_v2 内容的字节上限。
	HardLimit = 4096

	// MsgTypeMarkdownV2 消息类型。
	MsgTypeMarkdownV2 = "markdown_v2"

	truncatedSuffix = "... (内容过长被截断)"
	separator       = "---\n\n"
)

// Markdown markdown_v2 消息体。
type Markdown struct {
	Content string `json:"content"`
}

// Message 机器人消息。
type Message struct {
	MsgType    string    `json:"msgtype"`
	MarkdownV2 *Markdown `json:"markdown_v2"`
}

// rewrites 按顺序执行，链接和图片必须先于通用标签剥离。
var rewrites = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?s)<a href="([^"]+)"[^>]*>(.*?)</a>`), "[$2]($1)"},
	{regexp.MustCompile(`<img [^>]*src="([^"]+)"[^>]*>`), "![]($1)"},
	{regexp.MustCompile(`(?is)<(?:b|strong)>(.*?)</(?:b|strong)>`), "**$1**"},
	{regexp.MustCompile(`(?is)<(?:i|em)>(.*?)</(?:i|em)>`), "*$1*"},
	{regexp.MustCompile(`(?is)<li>(.*?)</li>`), "- $1\n"},
	{regexp.MustCompile(`(?i)<br\s*/?>`), "\n"},
	{regexp.MustCompile(`(?i)</?(?:p|ul|ol|div|blockquote|h[1-6])[^>]*>`), "\n"},
	{regexp.MustCompile(`<[^>]+>`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// HTMLToMarkdown 将正文中残留的 HTML 粗略转换为企业微信支持的 markdown。
func HTMLToMarkdown(body string) string {
	for _, r := range rewrites {
		body = r.re.ReplaceAllString(body, r.repl)
	}
	return strings.TrimSpace(body)
}

// Transcoder 文章到机器人消息的转换器。
type Transcoder struct {
	// BaseURL 站点地址，为空时超长内容只做硬截断。
	BaseURL string
}

// NewTranscoder 创建转换器，去掉 baseURL 两端的斜杠。
func NewTranscoder(baseURL string) *Transcoder {
	return &Transcoder{BaseURL: strings.Trim(strings.TrimSpace(baseURL), "/")}
}

// ReadMoreLink 返回指向文章页面的链接后缀。
func (t *Transcoder) ReadMoreLink(ref string) string {
	return "\n\n[...点击查看全文](" + t.BaseURL + "/article/" + ref + ")"
}

// Transcode 将文章文档转换为消息。ref 为文章相对存储根目录的路径。
// 内容长度按 UTF-8 字节计算，结果不会超过 HardLimit。
func (t *Transcoder) Transcode(doc, ref string) *Message {
	header, body, _ := strings.Cut(doc, separator)
	header = strings.TrimRight(header, "\n")
	content := header + "\n\n" + separator + HTMLToMarkdown(body)

	switch {
	case t.BaseURL != "" && len(content) > SoftLimit && len(t.ReadMoreLink(ref)) <= HardLimit:
		link := t.ReadMoreLink(ref)
		content = truncate(content, SoftLimit-len(link)) + link
	case len(content) > HardLimit:
		content = truncate(content, HardLimit-len(truncatedSuffix)) + truncatedSuffix
	}

	return &Message{MsgType: MsgTypeMarkdownV2, MarkdownV2: &Markdown{Content: content}}
}

// truncate 截取 s 的前 max 个字节，丢弃被截断的多字节字符。
// 如果最后一个换行位于后半部分，则退回到换行处，避免截断在 markdown 结构中间。
func truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if max < len(s) {
		for max > 0 && !utf8.RuneStart(s[max]) {
			max--
		}
		s = s[:max]
	}
	s = strings.ToValidUTF8(s, "")

	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		if 2*utf8.RuneCountInString(s[:i]) > utf8.RuneCountInString(s) {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
