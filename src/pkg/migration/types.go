package migration

import (
	"context"
	"errors"

	"github.com/TheGameKnave/angular-momentum-sub001/src/flatstore"
	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

var (
	// ErrMigrationFailed 迁移失败错误
	ErrMigrationFailed = errors.New("migration failed")
	// ErrRegistryOrder 注册表声明顺序与版本顺序不一致
	ErrRegistryOrder = errors.New("migration registry is not in ascending version order")
	// ErrRollbackFailed 回滚失败错误
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrLocked 存储被另一次迁移锁定错误
	ErrLocked = errors.New("store is locked by another migration")
	// ErrNoBackup 无备份可回滚错误
	ErrNoBackup = errors.New("no backup available for rollback")
)

// Env 迁移环境
// 持有两个本地存储的句柄，由调用方显式传入（不依赖注入容器）
type Env struct {
	// Flat 扁平存储
	Flat flatstore.Store
	// Data 结构化存储，扁平迁移可能需要读写它（例如搬迁备份记录）
	Data *structstore.DB
}

// FlatMigration 扁平存储迁移描述符
type FlatMigration struct {
	// Version 目标版本（semver 字符串）
	Version string
	// Description 人类可读的迁移说明
	Description string
	// Migrate 迁移变换，必须满足幂等约定：
	// 在相同起始状态下重复执行与执行一次结果相同
	Migrate func(ctx context.Context, env *Env) error
}

// StructMigration 结构化存储迁移描述符
type StructMigration struct {
	// Version 目标版本（正整数）
	Version int64
	// Description 人类可读的迁移说明
	Description string
	// Migrate 迁移变换，在存储引擎的升级事务内执行
	Migrate func(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error
}

// FlatRunResult 扁平迁移执行结果
type FlatRunResult struct {
	// FromVersion 执行前的版本标记
	FromVersion string
	// ToVersion 执行后的版本标记
	ToVersion string
	// Applied 本次成功应用的迁移数量
	Applied int
	// BackupKey 本次会话创建的备份记录 key（没有待执行迁移时为空）
	BackupKey string
}
