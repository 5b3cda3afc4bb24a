package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFileExtension 锁文件扩展名
	LockFileExtension = ".migration.lock"
)

// LockInfo 锁文件内容
// 升级开始时写入磁盘，记录恢复所需的全部上下文；
// 启动时发现残留锁文件即表明上次升级未正常完成
type LockInfo struct {
	StorePath     string `json:"store_path"`
	BackupPath    string `json:"backup_path"`
	StartTime     string `json:"start_time"`
	FromVersion   int64  `json:"from_version"`
	TargetVersion int64  `json:"target_version"`
	PID           int    `json:"pid"`
}

// LockManager 锁管理器
type LockManager struct {
	storePath string
	lockPath  string
}

// NewLockManager 创建锁管理器
func NewLockManager(storePath string) *LockManager {
	return &LockManager{
		storePath: storePath,
		lockPath:  storePath + LockFileExtension,
	}
}

// GetLockPath 获取锁文件路径
func (m *LockManager) GetLockPath() string {
	return m.lockPath
}

// Acquire 获取锁
func (m *LockManager) Acquire(info *LockInfo) error {
	if m.IsLocked() {
		existingInfo, err := m.GetLockInfo()
		if err != nil {
			return fmt.Errorf("lock file exists but cannot be read: %w", err)
		}
		return fmt.Errorf("%w: started at %s (PID: %d)",
			ErrLocked, existingInfo.StartTime, existingInfo.PID)
	}

	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock file directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}

	if err := os.WriteFile(m.lockPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}

	return nil
}

// Release 释放锁
func (m *LockManager) Release() error {
	if !m.IsLocked() {
		return nil
	}
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked 检查是否被锁定
func (m *LockManager) IsLocked() bool {
	_, err := os.Stat(m.lockPath)
	return err == nil
}

// GetLockInfo 获取锁信息
func (m *LockManager) GetLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(m.lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock info: %w", err)
	}

	return &info, nil
}

// CreateLockInfo 创建锁信息
func CreateLockInfo(storePath, backupPath string, fromVersion, targetVersion int64) *LockInfo {
	return &LockInfo{
		StorePath:     storePath,
		BackupPath:    backupPath,
		StartTime:     time.Now().Format(time.RFC3339),
		FromVersion:   fromVersion,
		TargetVersion: targetVersion,
		PID:           os.Getpid(),
	}
}
