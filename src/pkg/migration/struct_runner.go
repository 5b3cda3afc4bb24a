package migration

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

// UpgradeRunner 把注册表中的结构化迁移编译成一个升级回调
// 回调在单个升级事务内按注册顺序执行版本号落在 (oldVersion, newVersion] 区间的迁移；
// 任何一步失败都会使整个事务回滚，存储保持升级前状态
func (r *Registry) UpgradeRunner(logger *logrus.Logger) structstore.UpgradeFunc {
	return func(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
		for _, m := range r.structured {
			if m.Version <= tx.OldVersion() || m.Version > tx.NewVersion() {
				continue
			}
			entry := logger.WithFields(logrus.Fields{
				"version":     m.Version,
				"description": m.Description,
			})
			entry.Info("开始执行结构化存储迁移")
			if err := m.Migrate(ctx, h, tx); err != nil {
				entry.WithError(err).Error("结构化存储迁移失败，事务将整体回滚")
				structMigrationsFailed.Inc()
				return fmt.Errorf("%w: v%d: %v", ErrMigrationFailed, m.Version, err)
			}
			structMigrationsApplied.Inc()
			entry.Info("结构化存储迁移完成")
		}
		return nil
	}
}
