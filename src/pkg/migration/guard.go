package migration

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// FileGuard 结构化存储升级的文件级守护
// 升级会话的生命周期：CheckAndRecover → Begin → 升级 → Commit / Rollback；
// 备份副本加锁文件保证进程在升级中途被杀死后，下次启动能恢复到升级前状态
type FileGuard struct {
	storePath     string
	lockManager   *LockManager
	backups       *BackupSet
	logger        *logrus.Entry

	backupPath string
}

// NewFileGuard 创建文件级守护
func NewFileGuard(storePath string, logger *logrus.Logger) *FileGuard {
	return &FileGuard{
		storePath:     storePath,
		lockManager:   NewLockManager(storePath),
		backups:       NewBackupSet(storePath, DefaultBackupKeep),
		logger:        logger.WithField("store_path", storePath),
	}
}

// CheckAndRecover 检查并恢复未完成的升级
// 发现残留锁文件时从锁中记录的备份恢复存储文件，然后释放锁；
// 返回是否触发了恢复流程
func (g *FileGuard) CheckAndRecover() (bool, error) {
	if !g.lockManager.IsLocked() {
		return false, nil
	}

	lockInfo, err := g.lockManager.GetLockInfo()
	if err != nil {
		return false, fmt.Errorf("failed to read lock info: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"start_time":   lockInfo.StartTime,
		"pid":          lockInfo.PID,
		"from_version": lockInfo.FromVersion,
		"backup_path":  lockInfo.BackupPath,
	}).Warn("检测到未完成的升级，尝试恢复")

	if lockInfo.BackupPath != "" {
		if err := g.backups.Restore(lockInfo.BackupPath); err != nil {
			return true, fmt.Errorf("recovery failed: %w", err)
		}
		g.logger.Info("已从备份恢复存储文件")
	}

	if err := g.lockManager.Release(); err != nil {
		return true, err
	}
	return true, nil
}

// Begin 开始升级会话
// 先备份存储文件再写入锁文件，两步必须按此顺序；
// 锁文件写入失败时删除刚创建的备份
func (g *FileGuard) Begin(fromVersion, targetVersion int64) error {
	if g.lockManager.IsLocked() {
		lockInfo, err := g.lockManager.GetLockInfo()
		if err != nil {
			return fmt.Errorf("%w: cannot read lock info: %v", ErrLocked, err)
		}
		return fmt.Errorf("%w: started at %s (PID: %d)",
			ErrLocked, lockInfo.StartTime, lockInfo.PID)
	}

	backupPath, err := g.backups.Create()
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	g.backupPath = backupPath

	lockInfo := CreateLockInfo(g.storePath, backupPath, fromVersion, targetVersion)
	if err := g.lockManager.Acquire(lockInfo); err != nil {
		g.backups.Remove(backupPath)
		g.backupPath = ""
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

// Commit 升级成功，释放锁
// 备份文件保留，由 BackupSet 按数量上限淘汰
func (g *FileGuard) Commit() error {
	return g.lockManager.Release()
}

// Rollback 升级失败，从本次会话的备份恢复并释放锁
// 会话开始时存储文件尚不存在（无需备份）的情况下，回滚即删除半成品文件
func (g *FileGuard) Rollback() error {
	if g.backupPath == "" {
		if err := os.Remove(g.storePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", ErrRollbackFailed, err)
		}
		return g.lockManager.Release()
	}
	if err := g.backups.Restore(g.backupPath); err != nil {
		return fmt.Errorf("%w: %v", ErrRollbackFailed, err)
	}
	g.logger.WithField("backup_path", g.backupPath).Info("升级失败，已从备份回滚")
	return g.lockManager.Release()
}

// LatestBackup 获取最新的备份文件路径
func (g *FileGuard) LatestBackup() (string, error) {
	return g.backups.Latest()
}

// RestoreLatest 从最新备份恢复存储文件
func (g *FileGuard) RestoreLatest() error {
	latest, err := g.backups.Latest()
	if err != nil {
		return err
	}
	if latest == "" {
		return ErrNoBackup
	}
	g.logger.WithField("backup_path", latest).Info("从最新备份恢复存储文件")
	if err := g.backups.Restore(latest); err != nil {
		return fmt.Errorf("%w: %v", ErrRollbackFailed, err)
	}
	return nil
}
