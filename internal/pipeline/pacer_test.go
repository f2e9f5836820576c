package pipeline

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newFakePacer(interval time.Duration) (*IntervalPacer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewIntervalPacer(interval)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}

func TestIntervalPacerOnlyBetweenSends(t *testing.T) {
	p, clock := newFakePacer(3 * time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait 失败: %v", err)
		}
	}
	if len(clock.sleeps) != 2 {
		t.Fatalf("3 次发送之间应等待 2 次，实际 %d", len(clock.sleeps))
	}
	for _, d := range clock.sleeps {
		if d != 3*time.Second {
			t.Errorf("等待时长 = %v", d)
		}
	}
}

func TestIntervalPacerAccountsForElapsed(t *testing.T) {
	p, clock := newFakePacer(3 * time.Second)
	ctx := context.Background()

	_ = p.Wait(ctx)
	clock.now = clock.now.Add(2 * time.Second) // 发送耗时 2 秒
	_ = p.Wait(ctx)
	if len(clock.sleeps) != 1 || clock.sleeps[0] != time.Second {
		t.Errorf("应只补足剩余 1 秒: %v", clock.sleeps)
	}

	clock.now = clock.now.Add(5 * time.Second)
	_ = p.Wait(ctx)
	if len(clock.sleeps) != 1 {
		t.Errorf("已超过间隔时不应等待: %v", clock.sleeps)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); err != context.Canceled {
		t.Errorf("期望 context.Canceled，实际 %v", err)
	}
}
