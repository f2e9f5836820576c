// Package database 提供 SQLite 运行记录库：抓取记录和逐条推送记录。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/iabetor/rsswecom/internal/logger"
)

// DB 是 SQLite 数据库连接。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
// dbPath: 数据库文件路径，为空则使用 ./data/rsswecom.db
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "rsswecom.db")
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 推送和抓取本身是串行的，单连接避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	// 设置 WAL 模式（更好的并发性能）
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)

	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 抓取记录表
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			feed_url TEXT NOT NULL,
			total INTEGER DEFAULT 0,
			saved INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			failed INTEGER DEFAULT 0,
			error TEXT DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		// 推送记录表，每篇文章一行
		`CREATE TABLE IF NOT EXISTS push_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			feed_dir TEXT NOT NULL,
			date TEXT NOT NULL,
			path TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error TEXT DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_created ON ingest_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_push_log_created ON push_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_push_log_batch ON push_log(batch_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Warnf("[database] 创建索引失败: %v", err)
		}
	}

	logger.Info("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
