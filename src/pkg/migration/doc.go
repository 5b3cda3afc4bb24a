// Package migration 提供本地应用数据的迁移框架
//
// 本包覆盖扁平存储和结构化存储两条迁移链路，主要特性包括：
//
// 1. 键分类：按系统键、作用域键、候选键三类划分扁平存储中的键
// 2. 迁移注册表：迁移按版本顺序追加注册，Validate 在启动时断言顺序正确
// 3. 扁平迁移执行器：先写备份记录再执行迁移，每步成功后推进版本标记
// 4. 结构化升级回调：全部落在单个升级事务内，失败时整体回滚
// 5. 文件级守护：备份副本加锁文件，进程中途被杀死后下次启动可恢复
//
// 基本使用示例：
//
//	// 1. 注册迁移
//	registry := migration.NewRegistry()
//	registry.AppendFlat(migration.FlatMigration{
//	    Version:     "21.0.0",
//	    Description: "匿名键加作用域前缀",
//	    Migrate:     func(ctx context.Context, env *migration.Env) error { ... },
//	})
//	registry.MustValidate()
//
//	// 2. 执行扁平存储迁移
//	runner := migration.NewFlatRunner(env, registry, logger)
//	result, err := runner.Run(ctx)
//
//	// 3. 结构化存储升级在打开存储时触发
//	db, err := structstore.Open(ctx, path, registry.CurrentStructVersion(), registry.UpgradeRunner(logger))
package migration
