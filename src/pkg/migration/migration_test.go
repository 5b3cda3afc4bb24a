package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupSet_Create(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	err := os.WriteFile(storePath, []byte("store content"), 0644)
	require.NoError(t, err)

	set := NewBackupSet(storePath, DefaultBackupKeep)

	backupPath, err := set.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, backupPath)
	assert.FileExists(t, backupPath)

	content, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "store content", string(content))
}

func TestBackupSet_Create_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "nonexistent.db")

	set := NewBackupSet(storePath, DefaultBackupKeep)

	// 不存在的文件不需要备份
	backupPath, err := set.Create()
	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackupSet_Restore(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")
	backupPath := filepath.Join(tmpDir, "appdata.db.backup_20260101_000000")

	err := os.WriteFile(backupPath, []byte("backup content"), 0644)
	require.NoError(t, err)
	err = os.WriteFile(storePath, []byte("current content"), 0644)
	require.NoError(t, err)

	set := NewBackupSet(storePath, DefaultBackupKeep)
	err = set.Restore(backupPath)
	require.NoError(t, err)

	content, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.Equal(t, "backup content", string(content))
}

func TestBackupSet_List(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	backups := []string{
		storePath + ".backup_20260101_000001",
		storePath + ".backup_20260101_000002",
		storePath + ".backup_20260101_000003",
	}
	for _, backup := range backups {
		err := os.WriteFile(backup, []byte("backup"), 0644)
		require.NoError(t, err)
	}

	set := NewBackupSet(storePath, DefaultBackupKeep)
	list, err := set.List()
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// 最新的在前
	assert.Equal(t, backups[2], list[0])
	assert.Equal(t, backups[1], list[1])
	assert.Equal(t, backups[0], list[2])

	latest, err := set.Latest()
	require.NoError(t, err)
	assert.Equal(t, backups[2], latest)
}

func TestBackupSet_Prune(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	for i := 0; i < DefaultBackupKeep+3; i++ {
		backup := storePath + ".backup_2026010100000" + string(rune('0'+i))
		err := os.WriteFile(backup, []byte("backup"), 0644)
		require.NoError(t, err)
	}

	set := NewBackupSet(storePath, DefaultBackupKeep)

	list, err := set.List()
	require.NoError(t, err)
	assert.Greater(t, len(list), DefaultBackupKeep)

	err = set.Prune()
	require.NoError(t, err)

	list, err = set.List()
	require.NoError(t, err)
	assert.Len(t, list, DefaultBackupKeep)
	// 留下的是最新的几个
	assert.Equal(t, storePath+".backup_2026010100000"+string(rune('0'+DefaultBackupKeep+2)), list[0])
}

func TestLockManager_AcquireRelease(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	lm := NewLockManager(storePath)
	assert.False(t, lm.IsLocked())

	info := CreateLockInfo(storePath, "", 1, 3)
	require.NoError(t, lm.Acquire(info))
	assert.True(t, lm.IsLocked())

	// 重复获取失败
	err := lm.Acquire(info)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	read, err := lm.GetLockInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1), read.FromVersion)
	assert.Equal(t, int64(3), read.TargetVersion)
	assert.Equal(t, os.Getpid(), read.PID)

	require.NoError(t, lm.Release())
	assert.False(t, lm.IsLocked())

	// 重复释放是无害的
	require.NoError(t, lm.Release())
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestFileGuard_CommitReleasesLock(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")
	err := os.WriteFile(storePath, []byte("v1"), 0644)
	require.NoError(t, err)

	guard := NewFileGuard(storePath, testLogger())
	require.NoError(t, guard.Begin(1, 2))

	lm := NewLockManager(storePath)
	assert.True(t, lm.IsLocked())

	require.NoError(t, guard.Commit())
	assert.False(t, lm.IsLocked())
}

func TestFileGuard_RollbackRestoresFile(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")
	err := os.WriteFile(storePath, []byte("before upgrade"), 0644)
	require.NoError(t, err)

	guard := NewFileGuard(storePath, testLogger())
	require.NoError(t, guard.Begin(1, 2))

	// 模拟升级中途把文件写坏
	err = os.WriteFile(storePath, []byte("corrupted"), 0644)
	require.NoError(t, err)

	require.NoError(t, guard.Rollback())

	content, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.Equal(t, "before upgrade", string(content))
	assert.False(t, NewLockManager(storePath).IsLocked())
}

func TestFileGuard_RollbackFreshInstall(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	// 升级前存储文件不存在，Begin 不产生备份
	guard := NewFileGuard(storePath, testLogger())
	require.NoError(t, guard.Begin(0, 1))

	// 模拟升级写出半成品文件后失败
	err := os.WriteFile(storePath, []byte("half-upgraded"), 0644)
	require.NoError(t, err)

	require.NoError(t, guard.Rollback())
	assert.NoFileExists(t, storePath)
	assert.False(t, NewLockManager(storePath).IsLocked())
}

func TestFileGuard_CheckAndRecover(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")
	err := os.WriteFile(storePath, []byte("before upgrade"), 0644)
	require.NoError(t, err)

	// 模拟进程在升级中途被杀死：锁文件残留，存储文件处于中间状态
	guard := NewFileGuard(storePath, testLogger())
	require.NoError(t, guard.Begin(1, 2))
	err = os.WriteFile(storePath, []byte("half-upgraded"), 0644)
	require.NoError(t, err)

	fresh := NewFileGuard(storePath, testLogger())
	recovered, err := fresh.CheckAndRecover()
	require.NoError(t, err)
	assert.True(t, recovered)

	content, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.Equal(t, "before upgrade", string(content))
	assert.False(t, NewLockManager(storePath).IsLocked())
}

func TestFileGuard_CheckAndRecover_NoLock(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "appdata.db")

	guard := NewFileGuard(storePath, testLogger())
	recovered, err := guard.CheckAndRecover()
	require.NoError(t, err)
	assert.False(t, recovered)
}
