package structstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var (
	// ErrVersionDowngrade 存储中记录的版本高于目标版本
	ErrVersionDowngrade = errors.New("stored schema version is newer than requested version")
	// ErrUpgradeFailed 升级事务执行失败
	ErrUpgradeFailed = errors.New("schema upgrade failed")
	// ErrInvalidPartition 非法的分区名
	ErrInvalidPartition = errors.New("invalid partition name")
)

// UpgradeFunc 版本升级回调
// 当存储的版本落后于目标版本时由 Open 调用，整个回调在单个事务内执行：
// 任何错误都会导致整个升级回滚、Open 失败
type UpgradeFunc func(ctx context.Context, h *Handle, tx *UpgradeTx) error

// DB 结构化存储
// 多分区、带版本的本地数据库（SQLite 实现，每个分区一张表）
type DB struct {
	db      *sql.DB
	path    string
	version int64
	mu      sync.RWMutex
}

// Open 以目标版本打开（或创建）结构化存储
// 如果存储中记录的版本低于 version，则在单个事务内执行 onUpgrade 并更新版本号；
// 如果高于 version，返回 ErrVersionDowngrade
func Open(ctx context.Context, path string, version int64, onUpgrade UpgradeFunc) (*DB, error) {
	if version <= 0 {
		return nil, fmt.Errorf("版本号必须为正整数: %d", version)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	var current int64
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		db.Close()
		return nil, fmt.Errorf("读取数据库版本失败: %w", err)
	}

	if current > version {
		db.Close()
		return nil, fmt.Errorf("%w: stored=%d requested=%d", ErrVersionDowngrade, current, version)
	}

	if current < version {
		if err := runUpgrade(ctx, db, current, version, onUpgrade); err != nil {
			db.Close()
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"path":         path,
			"from_version": current,
			"to_version":   version,
		}).Info("结构化存储升级完成")
	}

	return &DB{db: db, path: path, version: version}, nil
}

// ReadVersion 读取数据库文件当前记录的版本号，不触发任何升级
// 文件不存在时返回 0
func ReadVersion(ctx context.Context, path string) (int64, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("打开数据库失败: %w", err)
	}
	defer db.Close()

	var current int64
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("读取数据库版本失败: %w", err)
	}
	return current, nil
}

// runUpgrade 在单个事务内执行升级回调并推进版本号
func runUpgrade(ctx context.Context, db *sql.DB, from, to int64, onUpgrade UpgradeFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启升级事务失败: %w", err)
	}

	h := &Handle{tx: tx}
	utx := &UpgradeTx{tx: tx, oldVersion: from, newVersion: to}

	if onUpgrade != nil {
		if err := onUpgrade(ctx, h, utx); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %v", ErrUpgradeFailed, err)
		}
	}

	// user_version 存储在数据库头中，随事务一起提交或回滚
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", to)); err != nil {
		tx.Rollback()
		return fmt.Errorf("更新数据库版本失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交升级事务失败: %w", err)
	}
	return nil
}

// Version 返回当前数据库版本
func (d *DB) Version() int64 {
	return d.version
}

// Path 返回数据库文件路径
func (d *DB) Path() string {
	return d.path
}

// Get 读取分区内 key 对应的值，第二个返回值表示 key 是否存在
func (d *DB) Get(ctx context.Context, partition, key string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := validatePartitionName(partition); err != nil {
		return "", false, err
	}
	var value string
	err := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, quoteIdent(partition)), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put 写入分区内的键值对，已存在时覆盖
func (d *DB) Put(ctx context.Context, partition, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := validatePartitionName(partition); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)`, quoteIdent(partition)),
		key, value,
	)
	return err
}

// Delete 删除分区内的键值对
func (d *DB) Delete(ctx context.Context, partition, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := validatePartitionName(partition); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, quoteIdent(partition)), key,
	)
	return err
}

// GetAllKeys 返回分区内所有 key
func (d *DB) GetAllKeys(ctx context.Context, partition string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := validatePartitionName(partition); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT key FROM %s ORDER BY key`, quoteIdent(partition)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeys(rows)
}

// Partitions 返回当前存在的所有分区名
func (d *DB) Partitions(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HasPartition 返回指定分区是否存在
func (d *DB) HasPartition(ctx context.Context, partition string) (bool, error) {
	names, err := d.Partitions(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == partition {
			return true, nil
		}
	}
	return false, nil
}

// Close 关闭存储
func (d *DB) Close() error {
	return d.db.Close()
}
