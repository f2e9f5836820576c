// Package httpx 构造带超时和代理设置的出站 HTTP 客户端。
package httpx

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// Proxy 出站代理设置，全部为空时直连。
type Proxy struct {
	HTTP    string
	HTTPS   string
	NoProxy string
}

func (p Proxy) empty() bool {
	return p.HTTP == "" && p.HTTPS == ""
}

// ProxyFunc 返回供 http.Transport 使用的代理选择函数。
// 与 http.ProxyFromEnvironment 不同，这里只看配置文件，不读取环境变量。
func (p Proxy) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if p.empty() {
		return nil
	}
	fn := (&httpproxy.Config{
		HTTPProxy:  p.HTTP,
		HTTPSProxy: p.HTTPS,
		NoProxy:    p.NoProxy,
	}).ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// NewClient 创建出站客户端。timeout <= 0 表示不设超时。
func NewClient(timeout time.Duration, proxy Proxy) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy.ProxyFunc()
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
