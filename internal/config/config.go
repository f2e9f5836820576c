package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 rsswecom 的顶层配置结构。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Feeds    []string       `yaml:"feeds"`
	Fetch    FetchConfig    `yaml:"fetch"`
	WeCom    WeComConfig    `yaml:"wecom"`
	App      AppConfig      `yaml:"app"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP 管理服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig 文章存储配置。
type StorageConfig struct {
	// Root 文章根目录，布局为 <root>/<源目录>/<YYYY-MM-DD>/news_<n>.md。
	Root string `yaml:"root"`
	// DataDir 存放订阅源列表和推送记录数据库。
	DataDir string `yaml:"data_dir"`
	// Timezone 计算日期分桶使用的时区，如 Asia/Shanghai；为空使用本地时区。
	Timezone string `yaml:"timezone"`
}

// FetchConfig RSS 抓取配置。
type FetchConfig struct {
	Timeout   int    `yaml:"timeout"` // 秒
	UserAgent string `yaml:"user_agent"`
}

// WeComConfig 企业微信群机器人配置。
type WeComConfig struct {
	WebhookKey string `yaml:"webhook_key"`
	WebhookURL string `yaml:"webhook_url"`
	Timeout    int    `yaml:"timeout"` // 秒
	// PushInterval 连续两条消息之间的最小间隔（秒），机器人限频 20 条/分钟。
	PushInterval int `yaml:"push_interval"`
}

// AppConfig 站点配置。
type AppConfig struct {
	// BaseURL 对外访问地址，用于生成"点击查看全文"链接；为空则不附加链接。
	BaseURL string `yaml:"base_url"`
}

// ProxyConfig 出站 HTTP 代理配置，为空表示直连。
type ProxyConfig struct {
	HTTP    string `yaml:"http"`
	HTTPS   string `yaml:"https"`
	NoProxy string `yaml:"no_proxy"`
}

// ScheduleConfig 定时抓取配置。
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"` // cron 表达式，如 "@every 1h" 或 "0 */2 * * *"
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

const (
	defaultFeed       = "https://sanhua.himrr.com/daily-news/feed"
	defaultWebhookURL = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send"
)

// Load 读取 YAML 配置文件并返回 Config。
// 先加载工作目录下的 .env（若存在），再展开 ${VAR_NAME} 形式的环境变量。
// path 为空时不读取文件，仅使用环境变量和默认值。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}

		expanded := os.Expand(string(data), func(key string) string {
			return os.Getenv(key)
		})

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)
	return cfg, nil
}

// applyEnv 用旧版部署使用的环境变量填充未配置的字段。
func applyEnv(cfg *Config) {
	if len(cfg.Feeds) == 0 {
		if v := os.Getenv("RSS_FEEDS"); v != "" {
			cfg.Feeds = SplitFeeds(v)
		}
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = os.Getenv("APP_BASE_URL")
	}
	if cfg.WeCom.WebhookKey == "" {
		cfg.WeCom.WebhookKey = os.Getenv("WECOM_ROBOT_WEBHOOK")
	}
}

// SplitFeeds 解析逗号分隔的订阅源列表，忽略空项。
func SplitFeeds(s string) []string {
	var feeds []string
	for _, part := range strings.Split(s, ",") {
		if u := strings.TrimSpace(part); u != "" {
			feeds = append(feeds, u)
		}
	}
	return feeds
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5001"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./rss-content"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = []string{defaultFeed}
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 15
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "rsswecom/1.0 RSS Reader"
	}
	if cfg.WeCom.WebhookURL == "" {
		cfg.WeCom.WebhookURL = defaultWebhookURL
	}
	if cfg.WeCom.Timeout == 0 {
		cfg.WeCom.Timeout = 10
	}
	if cfg.WeCom.PushInterval == 0 {
		cfg.WeCom.PushInterval = 3
	}
	if cfg.Schedule.Spec == "" {
		cfg.Schedule.Spec = "@every 1h"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	cfg.Storage.Root = expandHome(cfg.Storage.Root)
	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)

	// 环境变量展开后两端常带空白
	cfg.WeCom.WebhookKey = strings.TrimSpace(cfg.WeCom.WebhookKey)
	cfg.App.BaseURL = strings.TrimSpace(cfg.App.BaseURL)
}

// HistoryPath 返回推送记录数据库文件路径。
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Storage.DataDir, "rsswecom.db")
}

// expandHome 展开开头的 ~/，Go 不会自动处理。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return home + p[1:]
}
