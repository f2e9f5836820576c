// Package scheduler 按 cron 表达式定时抓取所有订阅源。
// 各订阅源依次抓取，上一轮未结束时跳过本轮。
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/pipeline"
)

// Ingester 抓取单个订阅源。
type Ingester interface {
	Ingest(ctx context.Context, feedURL string) (pipeline.IngestResult, error)
}

// FeedLister 提供当前订阅的源地址。
type FeedLister interface {
	URLs() []string
}

// Scheduler 定时抓取。
type Scheduler struct {
	cron     *cron.Cron
	ingester Ingester
	feeds    FeedLister
}

// New 创建调度器。
func New(ingester Ingester, feeds FeedLister) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger{}),
			cron.WithChain(
				cron.Recover(cronLogger{}),
				cron.SkipIfStillRunning(cronLogger{}),
			),
		),
		ingester: ingester,
		feeds:    feeds,
	}
}

// Start 按 spec 启动定时任务，支持标准 5 段表达式和 @every 1h 等描述符。
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		logger.Infof("[scheduler] 定时抓取开始")
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("无效的定时表达式 %q: %w", spec, err)
	}

	s.cron.Start()
	logger.Infof("[scheduler] 定时抓取已启动: %s", spec)
	return nil
}

// Stop 停止调度并等待正在执行的抓取结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("[scheduler] 已停止")
}

// RunOnce 依次抓取所有订阅源，单个源失败不影响其他源。返回新增文章总数。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	saved := 0
	for _, url := range s.feeds.URLs() {
		if ctx.Err() != nil {
			return saved
		}
		result, err := s.ingester.Ingest(ctx, url)
		if err != nil {
			logger.Warnf("[scheduler] 抓取 %s 失败: %v", url, err)
			continue
		}
		saved += result.Saved
	}
	logger.Infof("[scheduler] 本轮抓取完成，新增 %d 篇", saved)
	return saved
}
