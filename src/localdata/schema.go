package localdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/TheGameKnave/angular-momentum-sub001/src/pkg/migration"
	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

// legacyConsentKey 旧版 Cookie 同意状态 key，20.1.0 起统一为 ConsentKey
const legacyConsentKey = "cookie_consent"

// NewRegistry 构造应用的迁移注册表
// 迁移按版本顺序追加，只增不改；每个迁移都满足幂等约定，
// 部分失败后重跑会收敛到相同结果
func NewRegistry() *migration.Registry {
	r := migration.NewRegistry()

	r.AppendFlat(migration.FlatMigration{
		Version:     "20.1.0",
		Description: "统一 Cookie 同意状态 key 的命名",
		Migrate:     normalizeConsentKey,
	})
	r.AppendFlat(migration.FlatMigration{
		Version:     "21.0.0",
		Description: "候选 key 加匿名作用域前缀",
		Migrate:     rescopeCandidateKeys,
	})
	r.AppendFlat(migration.FlatMigration{
		Version:     "22.0.0",
		Description: "备份记录从扁平存储搬迁到结构化存储 backups 分区",
		Migrate:     moveBackupRecords,
	})

	r.AppendStructured(migration.StructMigration{
		Version:     1,
		Description: "创建初始 keyval 分区",
		Migrate:     createLegacyPartition,
	})
	r.AppendStructured(migration.StructMigration{
		Version:     2,
		Description: "创建 persistent 与 settings 分区",
		Migrate:     createSplitPartitions,
	})
	r.AppendStructured(migration.StructMigration{
		Version:     3,
		Description: "创建 backups 分区并拆分 keyval",
		Migrate:     splitLegacyPartition,
	})

	r.MustValidate()
	return r
}

// normalizeConsentKey 把旧版同意状态 key 的值搬到规范 key 下
// 规范 key 已有值时保留现有值，仅删除旧 key
func normalizeConsentKey(ctx context.Context, env *migration.Env) error {
	value, ok := env.Flat.Get(legacyConsentKey)
	if !ok {
		return nil
	}
	if _, exists := env.Flat.Get(migration.ConsentKey); !exists {
		if err := env.Flat.Set(migration.ConsentKey, value); err != nil {
			return err
		}
	}
	return env.Flat.Remove(legacyConsentKey)
}

// rescopeCandidateKeys 给所有候选 key 加匿名作用域前缀
// 系统 key 和已有作用域的 key 原样保留；目标 key 已有值时保留目标值，
// 仍然删除源 key；枚举后消失的 key 按无事发生处理
func rescopeCandidateKeys(ctx context.Context, env *migration.Env) error {
	for _, key := range env.Flat.Keys() {
		if !migration.IsCandidateKey(key) {
			continue
		}
		value, ok := env.Flat.Get(key)
		if !ok {
			continue
		}
		scoped := migration.AnonymousPrefix + key
		if _, exists := env.Flat.Get(scoped); !exists {
			if err := env.Flat.Set(scoped, value); err != nil {
				return fmt.Errorf("scope key %q: %w", key, err)
			}
		}
		if err := env.Flat.Remove(key); err != nil {
			return fmt.Errorf("remove key %q: %w", key, err)
		}
	}
	return nil
}

// moveBackupRecords 把扁平存储里的备份记录搬到结构化存储的 backups 分区
// 只搬迁能通过载荷校验的记录，损坏的记录原样留在扁平存储里待人工处理；
// 目标分区已有同名记录时保留现有记录，仍然删除源 key
func moveBackupRecords(ctx context.Context, env *migration.Env) error {
	if env.Data == nil {
		return fmt.Errorf("structured store is not available")
	}
	for _, key := range env.Flat.Keys() {
		if !strings.HasSuffix(key, "data_backup") {
			continue
		}
		value, ok := env.Flat.Get(key)
		if !ok {
			continue
		}
		if !isBackupPayload(value) {
			continue
		}
		if _, exists, err := env.Data.Get(ctx, PartitionBackups, key); err != nil {
			return fmt.Errorf("check backup %q: %w", key, err)
		} else if !exists {
			if err := env.Data.Put(ctx, PartitionBackups, key, value); err != nil {
				return fmt.Errorf("move backup %q: %w", key, err)
			}
		}
		if err := env.Flat.Remove(key); err != nil {
			return fmt.Errorf("remove backup %q: %w", key, err)
		}
	}
	return nil
}

// isBackupPayload 校验备份记录载荷格式
func isBackupPayload(value string) bool {
	if !gjson.Valid(value) {
		return false
	}
	parsed := gjson.Parse(value)
	return parsed.Get("version").Exists() && parsed.Get("entries").IsObject()
}

func createLegacyPartition(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
	exists, err := h.HasObjectStore(PartitionLegacy)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return h.CreateObjectStore(PartitionLegacy)
}

func createSplitPartitions(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
	for _, name := range []string{PartitionPersistent, PartitionSettings} {
		exists, err := h.HasObjectStore(name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := h.CreateObjectStore(name); err != nil {
			return err
		}
	}
	return nil
}

// splitLegacyPartition 按路由规则把 keyval 分区的数据拆分到目标分区
// 未命中任何规则的 key 随源分区一起丢弃，这是 v3 的一次性策略，
// 不作为后续迁移的通用模式；整个拆分在升级事务内完成，不存在逐 key
// 删除造成的读写竞态
func splitLegacyPartition(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
	exists, err := h.HasObjectStore(PartitionBackups)
	if err != nil {
		return err
	}
	if !exists {
		if err := h.CreateObjectStore(PartitionBackups); err != nil {
			return err
		}
	}

	hasLegacy, err := h.HasObjectStore(PartitionLegacy)
	if err != nil {
		return err
	}
	if !hasLegacy {
		return nil
	}

	source, err := tx.ObjectStore(PartitionLegacy)
	if err != nil {
		return err
	}
	keys, err := source.GetAllKeys()
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", PartitionLegacy, err)
	}

	for _, key := range keys {
		partition, matched := routePartition(key)
		if !matched {
			continue
		}
		value, ok, err := source.Get(key)
		if err != nil {
			return fmt.Errorf("read %q: %w", key, err)
		}
		if !ok {
			continue
		}
		dest, err := tx.ObjectStore(partition)
		if err != nil {
			return err
		}
		if _, taken, err := dest.Get(key); err != nil {
			return fmt.Errorf("check %s/%q: %w", partition, key, err)
		} else if taken {
			continue
		}
		if err := dest.Put(key, value); err != nil {
			return fmt.Errorf("route %q to %s: %w", key, partition, err)
		}
	}

	return h.DeleteObjectStore(PartitionLegacy)
}
