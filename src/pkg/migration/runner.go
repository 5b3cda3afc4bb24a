package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// 版本零值，用于版本标记缺失或损坏时的兜底
const zeroVersion = "0.0.0"

// backupRecord 扁平存储备份记录
// 在第一个迁移修改数据之前写入扁平存储自身，属 anonymous_ 作用域，
// 不会被后续的作用域迁移重命名
type backupRecord struct {
	Version   string            `json:"version"`
	CreatedAt string            `json:"created_at"`
	Entries   map[string]string `json:"entries"`
}

// FlatRunner 扁平存储迁移执行器
type FlatRunner struct {
	env      *Env
	registry *Registry
	logger   *logrus.Logger
	now      func() time.Time
}

// NewFlatRunner 创建扁平存储迁移执行器
func NewFlatRunner(env *Env, registry *Registry, logger *logrus.Logger) *FlatRunner {
	return &FlatRunner{
		env:      env,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// markerVersion 读取当前版本标记
// 标记缺失或无法解析时视为 0.0.0，全部迁移重新适用
func (r *FlatRunner) markerVersion() *semver.Version {
	raw, ok := r.env.Flat.Get(MarkerKey)
	if !ok {
		return semver.MustParse(zeroVersion)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		r.logger.WithField("marker", raw).Warn("版本标记无法解析，按初始版本处理")
		return semver.MustParse(zeroVersion)
	}
	return v
}

// pending 按注册顺序筛选出版本号大于当前标记的迁移
func (r *FlatRunner) pending(marker *semver.Version) []FlatMigration {
	var out []FlatMigration
	for _, m := range r.registry.FlatMigrations() {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			continue
		}
		if v.GreaterThan(marker) {
			out = append(out, m)
		}
	}
	return out
}

// writeBackup 把扁平存储全量快照作为一条备份记录写回存储
// 必须发生在任何迁移修改数据之前，失败时整个迁移流程中止
func (r *FlatRunner) writeBackup(marker *semver.Version) (string, error) {
	entries := make(map[string]string)
	for _, key := range r.env.Flat.Keys() {
		value, ok := r.env.Flat.Get(key)
		if !ok {
			continue
		}
		entries[key] = value
	}
	record := backupRecord{
		Version:   marker.String(),
		CreatedAt: r.now().UTC().Format(time.RFC3339),
		Entries:   entries,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("序列化备份记录失败: %w", err)
	}
	key := fmt.Sprintf("%s%s_data_backup", AnonymousPrefix, r.now().Format("20060102_150405"))
	if err := r.env.Flat.Set(key, string(payload)); err != nil {
		return "", fmt.Errorf("写入备份记录失败: %w", err)
	}
	r.logger.WithFields(logrus.Fields{
		"key":     key,
		"entries": len(entries),
	}).Info("已写入迁移前备份")
	return key, nil
}

// Run 执行所有待执行的扁平存储迁移
// 每个迁移成功后立即推进版本标记，失败时中止并保留已完成迁移的进度；
// 下次启动从失败的迁移处继续
func (r *FlatRunner) Run(ctx context.Context) (*FlatRunResult, error) {
	marker := r.markerVersion()
	result := &FlatRunResult{
		FromVersion: marker.String(),
		ToVersion:   marker.String(),
	}

	pending := r.pending(marker)
	if len(pending) == 0 {
		r.logger.WithField("version", marker.String()).Debug("扁平存储已是最新版本，无需迁移")
		return result, nil
	}

	backupKey, err := r.writeBackup(marker)
	if err != nil {
		return result, err
	}
	result.BackupKey = backupKey

	for _, m := range pending {
		entry := r.logger.WithFields(logrus.Fields{
			"version":     m.Version,
			"description": m.Description,
		})
		entry.Info("开始执行扁平存储迁移")
		if err := m.Migrate(ctx, r.env); err != nil {
			entry.WithError(err).Error("扁平存储迁移失败")
			flatMigrationsFailed.Inc()
			return result, fmt.Errorf("%w: %s: %v", ErrMigrationFailed, m.Version, err)
		}
		if err := r.env.Flat.Set(MarkerKey, m.Version); err != nil {
			entry.WithError(err).Error("推进版本标记失败")
			flatMarkerWriteFailed.Inc()
			return result, fmt.Errorf("%w: %s: 推进版本标记: %v", ErrMigrationFailed, m.Version, err)
		}
		flatMigrationsApplied.Inc()
		result.Applied++
		result.ToVersion = m.Version
		entry.Info("扁平存储迁移完成")
	}
	return result, nil
}
