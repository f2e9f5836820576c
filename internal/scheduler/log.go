package scheduler

import (
	"github.com/robfig/cron/v3"

	"github.com/iabetor/rsswecom/internal/logger"
)

// cronLogger 把 cron 内部日志转到全局 zap logger。
// cron 的 Info 日志（唤醒、跳过等）较频繁，按 debug 级别记录。
type cronLogger struct{}

var _ cron.Logger = cronLogger{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Z.Sugar().Debugw("[scheduler] cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Z.Sugar().Errorw("[scheduler] cron: "+msg, append(keysAndValues, "error", err)...)
}
