package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iabetor/rsswecom/internal/httpx"
	"github.com/iabetor/rsswecom/internal/logger"
)

// DefaultWebhookURL 企业微信群机器人接口地址。
const DefaultWebhookURL = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send"

// ErrMissingKey 未配置机器人 webhook key，属于配置错误而非发送失败。
var ErrMissingKey = errors.New("企业微信机器人 webhook key 未设置")

// RejectedError 接口返回 HTTP 200 但 errcode 不为 0。
type RejectedError struct {
	Code int
	Msg  string
}

func (e *RejectedError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "未知错误"
	}
	return fmt.Sprintf("发送到企业微信失败: %s (errcode %d)", msg, e.Code)
}

// TransportError 网络错误、非 200 状态码或响应无法解析。
type TransportError struct {
	Status int // 0 表示未收到响应
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("请求企业微信API出错: HTTP %d", e.Status)
	}
	return fmt.Sprintf("请求企业微信时出错: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type sendResponse struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notifier 企业微信群机器人客户端，不做重试。
type Notifier struct {
	key        string
	webhookURL string
	httpClient *http.Client
}

// NewNotifier 创建机器人客户端。webhookURL 为空时使用 DefaultWebhookURL。
func NewNotifier(key, webhookURL string, timeout time.Duration, proxy httpx.Proxy) *Notifier {
	if webhookURL == "" {
		webhookURL = DefaultWebhookURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		key:        strings.TrimSpace(key),
		webhookURL: webhookURL,
		httpClient: httpx.NewClient(timeout, proxy),
	}
}

// Configured 是否已配置 webhook key。
func (n *Notifier) Configured() bool {
	return n.key != ""
}

// Send 发送一条消息。未配置 key 时返回 ErrMissingKey，
// 接口拒绝返回 *RejectedError，其他失败返回 *TransportError。
func (n *Notifier) Send(ctx context.Context, msg *Message) error {
	if !n.Configured() {
		return ErrMissingKey
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(), bytes.NewReader(data))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("创建请求失败: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Warnf("[wecom] 请求企业微信时出错: %v", err)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warnf("[wecom] 请求企业微信API出错，状态码: %d, 内容: %s", resp.StatusCode, string(body))
		return &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var result sendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return &TransportError{Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	// 缺少 errcode 字段不视为成功
	if result.ErrCode == nil || *result.ErrCode != 0 {
		code := -1
		if result.ErrCode != nil {
			code = *result.ErrCode
		}
		logger.Warnf("[wecom] 发送到企业微信失败: %s", result.ErrMsg)
		return &RejectedError{Code: code, Msg: result.ErrMsg}
	}

	logger.Infof("[wecom] 成功发送到企业微信")
	return nil
}

func (n *Notifier) endpoint() string {
	sep := "?"
	if strings.Contains(n.webhookURL, "?") {
		sep = "&"
	}
	return n.webhookURL + sep + "key=" + url.QueryEscape(n.key)
}
