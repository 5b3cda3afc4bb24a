package migration

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Registry 迁移注册表
// 两张有序列表按声明顺序追加，声明顺序即版本顺序；
// 运行时不排序，Validate 在启动时断言顺序正确，发现配置缺陷立即失败
type Registry struct {
	flat       []FlatMigration
	structured []StructMigration
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{}
}

// AppendFlat 在扁平迁移列表末尾追加一个迁移
// 只允许追加，已发布的迁移不得删除或重排
func (r *Registry) AppendFlat(m FlatMigration) {
	r.flat = append(r.flat, m)
}

// AppendStructured 在结构化迁移列表末尾追加一个迁移
func (r *Registry) AppendStructured(m StructMigration) {
	r.structured = append(r.structured, m)
}

// FlatMigrations 返回扁平迁移列表（声明顺序）
func (r *Registry) FlatMigrations() []FlatMigration {
	return r.flat
}

// StructuredMigrations 返回结构化迁移列表（声明顺序）
func (r *Registry) StructuredMigrations() []StructMigration {
	return r.structured
}

// CurrentStructVersion 返回结构化存储的当前目标版本
// 即列表中最后一个迁移的版本号，列表为空时返回 0
func (r *Registry) CurrentStructVersion() int64 {
	if len(r.structured) == 0 {
		return 0
	}
	return r.structured[len(r.structured)-1].Version
}

// Validate 校验注册表
// 扁平迁移版本必须是合法 semver 且严格递增，结构化迁移版本必须是严格递增的正整数
func (r *Registry) Validate() error {
	var prev *semver.Version
	for i, m := range r.flat {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return fmt.Errorf("扁平迁移 #%d 版本号 %q 非法: %w", i, m.Version, err)
		}
		if m.Migrate == nil {
			return fmt.Errorf("扁平迁移 %s 缺少变换函数", m.Version)
		}
		if prev != nil && !v.GreaterThan(prev) {
			return fmt.Errorf("%w: 扁平迁移 %s 声明在 %s 之后", ErrRegistryOrder, m.Version, prev)
		}
		prev = v
	}

	var prevStruct int64
	for i, m := range r.structured {
		if m.Version <= 0 {
			return fmt.Errorf("结构化迁移 #%d 版本号必须为正整数: %d", i, m.Version)
		}
		if m.Migrate == nil {
			return fmt.Errorf("结构化迁移 %d 缺少变换函数", m.Version)
		}
		if m.Version <= prevStruct {
			return fmt.Errorf("%w: 结构化迁移 %d 声明在 %d 之后", ErrRegistryOrder, m.Version, prevStruct)
		}
		prevStruct = m.Version
	}
	return nil
}

// MustValidate 校验注册表，失败时 panic
// 注册表内容是编译期写死的，顺序错误属于配置缺陷，应在开发阶段立即暴露
func (r *Registry) MustValidate() {
	if err := r.Validate(); err != nil {
		panic(fmt.Sprintf("invalid migration registry: %v", err))
	}
}
