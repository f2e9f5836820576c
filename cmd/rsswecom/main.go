package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/iabetor/rsswecom/internal/article"
	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/scheduler"
	"github.com/iabetor/rsswecom/internal/server"
)

const defaultConfigPath = "configs/rsswecom.yaml"

// Globals 所有子命令共享的参数。
type Globals struct {
	Config string `help:"配置文件路径" default:"configs/rsswecom.yaml"`
}

// CLI 命令行定义。
type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" help:"启动管理服务（可选定时抓取）"`
	Ingest IngestCmd `cmd:"" help:"抓取订阅源并保存新文章"`
	Push   PushCmd   `cmd:"" help:"把某源某天的文章逐条推送到企业微信"`
}

// ServeCmd 启动 HTTP 服务。
type ServeCmd struct {
	Addr string `help:"监听地址，覆盖配置文件中的 server.addr"`
}

// Run 运行服务直到收到退出信号。
func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(g.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.New(server.Options{
		Pipeline:  a.pipeline,
		Store:     a.store,
		Feeds:     a.feeds,
		Validator: a.fetcher,
		History:   a.db,
	})
	if err != nil {
		return fmt.Errorf("创建 HTTP 服务失败: %w", err)
	}

	if a.cfg.Schedule.Enabled {
		sched := scheduler.New(a.pipeline, a.feeds)
		if err := sched.Start(ctx, a.cfg.Schedule.Spec); err != nil {
			return err
		}
		defer sched.Stop()
	}

	addr := a.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	return srv.Run(ctx, addr)
}

// IngestCmd 抓取一次。
type IngestCmd struct {
	URLs []string `arg:"" optional:"" name:"url" help:"订阅源地址，为空时依次抓取所有订阅源"`
}

// Run 依次抓取，单个源失败不影响其他源。
func (c *IngestCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(g.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(c.URLs) == 0 {
		saved := scheduler.New(a.pipeline, a.feeds).RunOnce(ctx)
		fmt.Printf("成功获取 %d 个新新闻条目。\n", saved)
		return nil
	}

	var failed int
	for _, url := range c.URLs {
		result, err := a.pipeline.Ingest(ctx, url)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", url, err)
			continue
		}
		fmt.Printf("%s: %s\n", url, result.Message())
	}
	if failed > 0 {
		return fmt.Errorf("%d 个订阅源抓取失败", failed)
	}
	return nil
}

// PushCmd 推送一批。
type PushCmd struct {
	FeedURL string `arg:"" name:"feed-url" help:"订阅源地址"`
	Date    string `arg:"" optional:"" help:"日期 YYYY-MM-DD，默认今天"`
}

// Run 推送并输出统计，有失败时返回错误。
func (c *PushCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(g.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	date := c.Date
	if date == "" {
		date = time.Now().In(a.loc).Format(article.DateLayout)
	}

	result, err := a.pipeline.PushBatch(ctx, article.FeedDir(c.FeedURL), date)
	if err != nil {
		return err
	}
	fmt.Println(result.Message())
	if result.Partial() {
		return errors.New("部分文章推送失败")
	}
	return nil
}

// signalContext 返回收到 SIGINT/SIGTERM 时取消的 context。
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rsswecom"),
		kong.Description("RSS 订阅抓取、按日期保存为 markdown，并推送到企业微信群机器人。"),
		kong.UsageOnError(),
	)
	if err := kctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
