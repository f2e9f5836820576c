package database

import (
	"context"
	"fmt"
	"time"
)

// IngestRun 一次抓取的结果。
type IngestRun struct {
	RunID     string    `json:"run_id"`
	FeedURL   string    `json:"feed_url"`
	Total     int       `json:"total"`
	Saved     int       `json:"saved"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PushRecord 一篇文章的推送结果。
type PushRecord struct {
	BatchID   string    `json:"batch_id"`
	FeedDir   string    `json:"feed_dir"`
	Date      string    `json:"date"`
	Path      string    `json:"path"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordIngest 写入抓取记录。CreatedAt 为零值时使用当前时间。
func (db *DB) RecordIngest(ctx context.Context, r IngestRun) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO ingest_runs (run_id, feed_url, total, saved, skipped, failed, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FeedURL, r.Total, r.Saved, r.Skipped, r.Failed, r.Error, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("写入抓取记录失败: %w", err)
	}
	return nil
}

// RecordPush 写入推送记录。CreatedAt 为零值时使用当前时间。
func (db *DB) RecordPush(ctx context.Context, r PushRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO push_log (batch_id, feed_dir, date, path, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.FeedDir, r.Date, r.Path, r.Success, r.Error, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("写入推送记录失败: %w", err)
	}
	return nil
}

// RecentPushes 返回最近的推送记录，最新的在前。
func (db *DB) RecentPushes(ctx context.Context, limit int) ([]PushRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT batch_id, feed_dir, date, path, success, error, created_at
		 FROM push_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询推送记录失败: %w", err)
	}
	defer rows.Close()

	records := []PushRecord{}
	for rows.Next() {
		var r PushRecord
		var createdAt int64
		if err := rows.Scan(&r.BatchID, &r.FeedDir, &r.Date, &r.Path, &r.Success, &r.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("读取推送记录失败: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentIngests 返回最近的抓取记录，最新的在前。
func (db *DB) RecentIngests(ctx context.Context, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, feed_url, total, saved, skipped, failed, error, created_at
		 FROM ingest_runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询抓取记录失败: %w", err)
	}
	defer rows.Close()

	runs := []IngestRun{}
	for rows.Next() {
		var r IngestRun
		var createdAt int64
		if err := rows.Scan(&r.RunID, &r.FeedURL, &r.Total, &r.Saved, &r.Skipped, &r.Failed, &r.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("读取抓取记录失败: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
