package pipeline

import (
	"context"
	"sync"
	"time"
)

// DefaultPushInterval 企业微信机器人限频 20 条/分钟，两次发送至少间隔 3 秒。
const DefaultPushInterval = 3 * time.Second

// Pacer 发送节奏控制，每次发送前调用 Wait。
// 可替换为令牌桶等实现而不影响 Notifier。
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer 保证相邻两次 Wait 返回之间至少间隔 interval。
// 第一次调用立即返回，因此只在连续发送之间等待。
type IntervalPacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIntervalPacer 创建固定间隔的节奏控制。
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait 阻塞到距上次发送满 interval，ctx 取消时提前返回。
func (p *IntervalPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if wait := p.interval - p.now().Sub(p.last); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
