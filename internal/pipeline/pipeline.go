// Package pipeline 编排抓取和推送：
// 抓取 → 保存文章；列出某天文章 → 转换 → 逐条发送到企业微信。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/rsswecom/internal/article"
	"github.com/iabetor/rsswecom/internal/database"
	"github.com/iabetor/rsswecom/internal/logger"
	"github.com/iabetor/rsswecom/internal/rss"
	"github.com/iabetor/rsswecom/internal/wecom"
)

var (
	// ErrNoEntries 订阅源没有任何条目。
	ErrNoEntries = errors.New("未找到新闻条目")
	// ErrNoArticles 指定日期没有可推送的文章。
	ErrNoArticles = errors.New("没有可推送的新闻")
)

// Source 订阅源抓取。
type Source interface {
	Fetch(ctx context.Context, url string) ([]rss.Entry, error)
}

// Sender 消息发送。
type Sender interface {
	Send(ctx context.Context, msg *wecom.Message) error
	Configured() bool
}

// Recorder 运行记录，写入失败只记日志。
type Recorder interface {
	RecordIngest(ctx context.Context, r database.IngestRun) error
	RecordPush(ctx context.Context, r database.PushRecord) error
}

// FeedTracker 记录订阅源最后抓取时间。
type FeedTracker interface {
	UpdateLastFetched(url string, t time.Time)
}

// Options 编排器依赖。Store、Source、Sender 必填。
type Options struct {
	Store      *article.Store
	Source     Source
	Sender     Sender
	Transcoder *wecom.Transcoder
	// Pacer 为 nil 时使用 DefaultPushInterval 的 IntervalPacer。
	Pacer    Pacer
	Recorder Recorder
	Feeds    FeedTracker
}

// IngestResult 一次抓取的统计。
type IngestResult struct {
	RunID   string `json:"run_id"`
	Total   int    `json:"total"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Message 返回给用户的提示。
func (r IngestResult) Message() string {
	return fmt.Sprintf("成功获取 %d 个新新闻条目。", r.Saved)
}

// PushResult 一批推送的统计，LastError 只保留最后一条失败原因。
type PushResult struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Success   int    `json:"success"`
	Failure   int    `json:"failure"`
	LastError string `json:"last_error,omitempty"`
}

// Partial 是否有文章推送失败。
func (r PushResult) Partial() bool { return r.Failure > 0 }

// Message 返回给用户的提示。
func (r PushResult) Message() string {
	if !r.Partial() {
		return fmt.Sprintf("成功推送 %d 条新闻。", r.Success)
	}
	msg := fmt.Sprintf("推送完成，%d 条成功，%d 条失败。", r.Success, r.Failure)
	if r.LastError != "" {
		msg += " 最后一条错误信息: " + r.LastError
	}
	return msg
}

// Pipeline 编排器。Ingest 和 PushBatch 互斥执行。
type Pipeline struct {
	store      *article.Store
	source     Source
	sender     Sender
	transcoder *wecom.Transcoder
	pacer      Pacer
	recorder   Recorder
	feeds      FeedTracker

	mu    sync.Mutex
	state *StateMachine
}

// New 创建编排器。
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil || opts.Source == nil || opts.Sender == nil {
		return nil, errors.New("pipeline: Store、Source、Sender 不能为空")
	}
	p := &Pipeline{
		store:      opts.Store,
		source:     opts.Source,
		sender:     opts.Sender,
		transcoder: opts.Transcoder,
		pacer:      opts.Pacer,
		recorder:   opts.Recorder,
		feeds:      opts.Feeds,
		state:      NewStateMachine(),
	}
	p.state.SetOnChange(logStateDuration())
	if p.transcoder == nil {
		p.transcoder = wecom.NewTranscoder("")
	}
	if p.pacer == nil {
		p.pacer = NewIntervalPacer(DefaultPushInterval)
	}
	return p, nil
}

// State 返回当前运行状态。
func (p *Pipeline) State() State {
	return p.state.Current()
}

// Store 返回文章存储。
func (p *Pipeline) Store() *article.Store {
	return p.store
}

// Ingest 抓取订阅源并保存新条目。抓取或解析失败原样返回
// （*rss.FetchError / *rss.ParseError），没有条目返回 ErrNoEntries。
// 单条保存失败只计数，不中断。
func (p *Pipeline) Ingest(ctx context.Context, feedURL string) (IngestResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Transition(StateIngesting)
	defer p.state.Transition(StateIdle)

	result := IngestResult{RunID: uuid.NewString()}
	logger.Infof("[pipeline] 开始抓取 %s (run %s)", feedURL, result.RunID)

	entries, err := p.source.Fetch(ctx, feedURL)
	if err != nil {
		p.recordIngest(ctx, feedURL, result, err)
		return result, err
	}
	if len(entries) == 0 {
		p.recordIngest(ctx, feedURL, result, ErrNoEntries)
		return result, ErrNoEntries
	}

	feedDir := article.FeedDir(feedURL)
	result.Total = len(entries)
	for _, e := range entries {
		outcome, err := p.store.Persist(feedDir, e)
		switch {
		case err != nil:
			result.Failed++
			logger.Errorf("[pipeline] 保存条目 '%s' 失败: %v", e.Title, err)
		case outcome == article.Saved:
			result.Saved++
		default:
			result.Skipped++
		}
	}

	if p.feeds != nil {
		p.feeds.UpdateLastFetched(feedURL, time.Now())
	}
	p.recordIngest(ctx, feedURL, result, nil)

	logger.Infof("[pipeline] 抓取完成 %s: 共 %d 条，新增 %d，跳过 %d，失败 %d",
		feedURL, result.Total, result.Saved, result.Skipped, result.Failed)
	return result, nil
}

// PushBatch 按路径顺序逐条推送某源某天的所有文章。
// 未配置 webhook key 时立即返回 wecom.ErrMissingKey，不发送任何消息。
// 单条失败不中断批次，结果中保留失败数和最后一条错误。
func (p *Pipeline) PushBatch(ctx context.Context, feedDir, date string) (PushResult, error) {
	if !p.sender.Configured() {
		return PushResult{}, wecom.ErrMissingKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Transition(StatePushing)
	defer p.state.Transition(StateIdle)

	refs, err := p.store.ListBatch(feedDir, date)
	if err != nil {
		return PushResult{}, err
	}
	if len(refs) == 0 {
		return PushResult{}, ErrNoArticles
	}

	result := PushResult{BatchID: uuid.NewString(), Total: len(refs)}
	logger.Infof("[pipeline] 开始推送 %s/%s，共 %d 条 (batch %s)", feedDir, date, len(refs), result.BatchID)

	for _, ref := range refs {
		if err := p.pacer.Wait(ctx); err != nil {
			logger.Warnf("[pipeline] 推送被中断: %v", err)
			return result, err
		}

		err := p.pushOne(ctx, ref)
		if err != nil {
			result.Failure++
			result.LastError = err.Error()
			logger.Warnf("[pipeline] 推送 %s 失败: %v", ref.Path, err)
		} else {
			result.Success++
		}
		p.recordPush(ctx, result.BatchID, feedDir, date, ref.Path, err)
	}

	logger.Infof("[pipeline] %s", result.Message())
	return result, nil
}

func (p *Pipeline) pushOne(ctx context.Context, ref article.Ref) error {
	doc, err := p.store.Read(ref.Path)
	if err != nil {
		return fmt.Errorf("处理文件 %s 时出错: %w", ref.Path, err)
	}
	return p.sender.Send(ctx, p.transcoder.Transcode(doc, ref.Path))
}

func (p *Pipeline) recordIngest(ctx context.Context, feedURL string, r IngestResult, runErr error) {
	if p.recorder == nil {
		return
	}
	run := database.IngestRun{
		RunID:   r.RunID,
		FeedURL: feedURL,
		Total:   r.Total,
		Saved:   r.Saved,
		Skipped: r.Skipped,
		Failed:  r.Failed,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := p.recorder.RecordIngest(context.WithoutCancel(ctx), run); err != nil {
		logger.Warnf("[pipeline] 写入抓取记录失败: %v", err)
	}
}

func (p *Pipeline) recordPush(ctx context.Context, batchID, feedDir, date, path string, sendErr error) {
	if p.recorder == nil {
		return
	}
	rec := database.PushRecord{
		BatchID: batchID,
		FeedDir: feedDir,
		Date:    date,
		Path:    path,
		Success: sendErr == nil,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := p.recorder.RecordPush(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warnf("[pipeline] 写入推送记录失败: %v", err)
	}
}

// logStateDuration 返回状态回调，回到 Idle 时记录本次抓取或推送的耗时。
func logStateDuration() func(from, to State) {
	var since time.Time
	return func(from, to State) {
		if to != StateIdle {
			since = time.Now()
			return
		}
		logger.Infof("[pipeline] %s 结束，耗时 %v", from, time.Since(since).Round(time.Millisecond))
	}
}
