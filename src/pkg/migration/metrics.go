package migration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flatMigrationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_flat_migrations_applied_total",
		Help: "扁平存储迁移成功执行的次数",
	})
	flatMigrationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_flat_migrations_failed_total",
		Help: "扁平存储迁移失败的次数",
	})
	flatMarkerWriteFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_flat_marker_write_failed_total",
		Help: "迁移成功后推进版本标记失败的次数",
	})
	structMigrationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_struct_migrations_applied_total",
		Help: "结构化存储迁移成功执行的次数",
	})
	structMigrationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "momentum_struct_migrations_failed_total",
		Help: "结构化存储迁移失败的次数",
	})
	structSchemaVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_struct_schema_version",
		Help: "结构化存储当前模式版本",
	})
)

// SetSchemaVersion 记录结构化存储当前模式版本
func SetSchemaVersion(v int64) {
	structSchemaVersion.Set(float64(v))
}
