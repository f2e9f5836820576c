package article

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// noiseKeywords 标题/正文中需去除的称呼词。按顺序组成交替式，
// 同一位置优先匹配靠前的词（与 Perl 风格正则一致）。
var noiseKeywords = []string{"大佬", "佬友们", "佬友", "佬们", "大佬们", "佬"}

var keywordPattern = buildKeywordPattern(noiseKeywords)

func buildKeywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile("(" + strings.Join(quoted, "|") + ")")
}

// CleanText 去除称呼词。
func CleanText(s string) string {
	return keywordPattern.ReplaceAllString(s, "")
}

// CleanTitle 去除称呼词并把空白折叠为单个空格，保证标题写成一行标题行。
func CleanTitle(s string) string {
	return strings.Join(strings.Fields(CleanText(s)), " ")
}

const maxFeedDirLen = 100

var (
	schemePattern     = regexp.MustCompile(`^https?://`)
	unsafePathPattern = regexp.MustCompile(`[/:?*<>|"\\]`)
)

// FeedDir 将订阅源 URL 映射为目录名：去掉协议，非法字符替换为下划线，
// 最多保留 100 个字符。同一 URL 总是得到同一目录。
func FeedDir(feedURL string) string {
	s := schemePattern.ReplaceAllString(feedURL, "")
	s = unsafePathPattern.ReplaceAllString(s, "_")
	if utf8.RuneCountInString(s) > maxFeedDirLen {
		s = string([]rune(s)[:maxFeedDirLen])
	}
	return s
}
