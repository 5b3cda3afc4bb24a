package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// backupTimeFormat 备份文件名中的时间戳，固定宽度保证字典序即时间序
	backupTimeFormat = "20060102_150405"
	// DefaultBackupKeep 默认保留的备份数量
	DefaultBackupKeep = 5
)

// BackupSet 单个存储文件的备份集合
// 备份是升级前存储文件的完整副本，命名为 <store>.backup_<时间戳>；
// 数量超出上限时从最旧的开始淘汰
type BackupSet struct {
	storePath string
	keep      int
}

// NewBackupSet 创建备份集合
func NewBackupSet(storePath string, keep int) *BackupSet {
	if keep <= 0 {
		keep = DefaultBackupKeep
	}
	return &BackupSet{storePath: storePath, keep: keep}
}

// Create 为存储文件创建一个新备份并淘汰多余的旧备份
// 存储文件尚不存在时无需备份，返回空路径
func (b *BackupSet) Create() (string, error) {
	data, err := os.ReadFile(b.storePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取存储文件失败: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup_%s", b.storePath, time.Now().Format(backupTimeFormat))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("写入备份失败: %w", err)
	}

	// 淘汰失败不影响主流程
	_ = b.Prune()

	return backupPath, nil
}

// Restore 用指定备份覆盖存储文件
func (b *BackupSet) Restore(backupPath string) error {
	if backupPath == "" {
		return fmt.Errorf("备份路径为空")
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("读取备份失败: %w", err)
	}
	if err := os.WriteFile(b.storePath, data, 0644); err != nil {
		return fmt.Errorf("恢复存储文件失败: %w", err)
	}
	return nil
}

// Remove 删除一个备份文件
func (b *BackupSet) Remove(backupPath string) error {
	if backupPath == "" {
		return nil
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除备份失败: %w", err)
	}
	return nil
}

// List 列出全部备份，最新的在前
func (b *BackupSet) List() ([]string, error) {
	backups, err := filepath.Glob(b.storePath + ".backup_*")
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// Latest 返回最新的备份，没有备份时返回空路径
func (b *BackupSet) Latest() (string, error) {
	backups, err := b.List()
	if err != nil || len(backups) == 0 {
		return "", err
	}
	return backups[0], nil
}

// Prune 淘汰最旧的备份，保留最近的 keep 个
func (b *BackupSet) Prune() error {
	backups, err := b.List()
	if err != nil {
		return err
	}
	if len(backups) <= b.keep {
		return nil
	}
	for _, backup := range backups[b.keep:] {
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("删除过期备份 %s 失败: %w", backup, err)
		}
	}
	return nil
}
