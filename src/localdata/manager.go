package localdata

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bluele/gcache"
	"github.com/sirupsen/logrus"

	"github.com/TheGameKnave/angular-momentum-sub001/src/configs"
	"github.com/TheGameKnave/angular-momentum-sub001/src/flatstore"
	"github.com/TheGameKnave/angular-momentum-sub001/src/pkg/migration"
	"github.com/TheGameKnave/angular-momentum-sub001/src/pkg/sentry"
	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

// Manager 本地数据管理器
// 负责启动时的迁移编排，并向应用暴露两个存储的读写入口
type Manager struct {
	conf     *configs.Config
	logger   *logrus.Logger
	registry *migration.Registry

	flat  *flatstore.FileStore
	data  *structstore.DB
	cache gcache.Cache

	flatResult *migration.FlatRunResult
}

// NewManager 创建本地数据管理器
func NewManager(conf *configs.Config, logger *logrus.Logger) *Manager {
	return &Manager{
		conf:     conf,
		logger:   logger,
		registry: NewRegistry(),
	}
}

// Start 执行启动序列
// 顺序固定：崩溃恢复检查 → 打开结构化存储（触发升级）→ 打开扁平存储 →
// 执行扁平迁移。结构化升级失败对本次会话是致命的；扁平迁移失败只记录
// 上报，应用带着部分迁移的状态继续启动，下次启动自动重试
func (m *Manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.conf.AppDataPath, 0755); err != nil {
		return fmt.Errorf("创建应用数据目录失败: %w", err)
	}
	structPath := m.conf.StructStorePath()

	guard := migration.NewFileGuard(structPath, m.logger)
	recovered, err := guard.CheckAndRecover()
	if err != nil {
		return fmt.Errorf("恢复未完成的升级失败: %w", err)
	}
	if recovered {
		m.logger.Warn("上次升级未正常完成，已从备份恢复")
	}

	targetVersion := m.registry.CurrentStructVersion()
	fromVersion, err := structstore.ReadVersion(ctx, structPath)
	if err != nil {
		return fmt.Errorf("读取结构化存储版本失败: %w", err)
	}

	needsUpgrade := fromVersion < targetVersion
	if needsUpgrade {
		if err := guard.Begin(fromVersion, targetVersion); err != nil {
			return fmt.Errorf("准备升级会话失败: %w", err)
		}
	}

	db, err := structstore.Open(ctx, structPath, targetVersion, m.registry.UpgradeRunner(m.logger))
	if err != nil {
		if needsUpgrade {
			if rbErr := guard.Rollback(); rbErr != nil {
				m.logger.WithError(rbErr).Error("升级失败后的回滚也失败了")
			}
		}
		return fmt.Errorf("打开结构化存储失败: %w", err)
	}
	if needsUpgrade {
		if err := guard.Commit(); err != nil {
			m.logger.WithError(err).Warn("释放升级锁失败")
		}
	}
	m.data = db
	migration.SetSchemaVersion(db.Version())

	flat, err := flatstore.NewFileStore(m.conf.FlatStorePath())
	if err != nil {
		db.Close()
		return fmt.Errorf("打开扁平存储失败: %w", err)
	}
	m.flat = flat
	sentry.BindStore(flat)

	runner := migration.NewFlatRunner(&migration.Env{Flat: flat, Data: db}, m.registry, m.logger)
	result, err := runner.Run(ctx)
	m.flatResult = result
	if err != nil {
		m.logger.WithError(err).Error("扁平存储迁移失败，应用将以部分迁移状态继续")
		sentry.CaptureException(err)
	} else if result.Applied > 0 {
		m.logger.WithFields(logrus.Fields{
			"from":    result.FromVersion,
			"to":      result.ToVersion,
			"applied": result.Applied,
		}).Info("扁平存储迁移完成")
	}

	if configs.EnableBackupPruning {
		// 清理不阻塞启动，在后台执行
		sentry.Go(func() {
			if err := m.pruneBackupRecords(context.Background()); err != nil {
				m.logger.WithError(err).Warn("清理历史备份记录失败")
			}
		})
	}

	m.cache = gcache.New(m.conf.Storage.CacheSize).LRU().Build()
	return nil
}

// Flat 返回扁平存储句柄
func (m *Manager) Flat() flatstore.Store {
	return m.flat
}

// Data 返回结构化存储句柄
func (m *Manager) Data() *structstore.DB {
	return m.data
}

// FlatResult 返回最近一次扁平迁移的执行结果
func (m *Manager) FlatResult() *migration.FlatRunResult {
	return m.flatResult
}

// cacheKey 组合分区名和 key 作为缓存键
func cacheKey(partition, key string) string {
	return partition + "\x00" + key
}

// Get 读取结构化存储，经过 LRU 读缓存
func (m *Manager) Get(ctx context.Context, partition, key string) (string, bool, error) {
	ck := cacheKey(partition, key)
	if cached, err := m.cache.Get(ck); err == nil {
		return cached.(string), true, nil
	}
	value, ok, err := m.data.Get(ctx, partition, key)
	if err != nil || !ok {
		return "", false, err
	}
	_ = m.cache.Set(ck, value)
	return value, true, nil
}

// Put 写入结构化存储并更新缓存
func (m *Manager) Put(ctx context.Context, partition, key, value string) error {
	if err := m.data.Put(ctx, partition, key, value); err != nil {
		return err
	}
	_ = m.cache.Set(cacheKey(partition, key), value)
	return nil
}

// Delete 删除结构化存储中的记录并使缓存失效
func (m *Manager) Delete(ctx context.Context, partition, key string) error {
	if err := m.data.Delete(ctx, partition, key); err != nil {
		return err
	}
	m.cache.Remove(cacheKey(partition, key))
	return nil
}

// ClearAnonymousData 清除所有匿名会话数据
// 用户登录后调用：删除两个存储中带匿名前缀的 key，系统 key 和
// 用户作用域 key 不受影响
func (m *Manager) ClearAnonymousData(ctx context.Context) error {
	for _, key := range m.flat.Keys() {
		if !strings.HasPrefix(key, migration.AnonymousPrefix) {
			continue
		}
		if err := m.flat.Remove(key); err != nil {
			return fmt.Errorf("清除扁平存储匿名数据失败: %w", err)
		}
	}

	partitions, err := m.data.Partitions(ctx)
	if err != nil {
		return err
	}
	for _, partition := range partitions {
		keys, err := m.data.GetAllKeys(ctx, partition)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !strings.HasPrefix(key, migration.AnonymousPrefix) {
				continue
			}
			if err := m.data.Delete(ctx, partition, key); err != nil {
				return fmt.Errorf("清除结构化存储匿名数据失败: %w", err)
			}
		}
	}

	m.cache.Purge()
	m.logger.Info("匿名会话数据已清除")
	return nil
}

// pruneBackupRecords 清理 backups 分区里的历史备份记录
// 备份记录 key 带固定宽度时间戳，字典序即时间序；保留最近的
// migration.DefaultBackupKeep 条
func (m *Manager) pruneBackupRecords(ctx context.Context) error {
	keys, err := m.data.GetAllKeys(ctx, PartitionBackups)
	if err != nil {
		return err
	}
	if len(keys) <= migration.DefaultBackupKeep {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, key := range keys[migration.DefaultBackupKeep:] {
		if err := m.data.Delete(ctx, PartitionBackups, key); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭管理器
func (m *Manager) Close() error {
	if m.cache != nil {
		m.cache.Purge()
	}
	if m.data != nil {
		return m.data.Close()
	}
	return nil
}
