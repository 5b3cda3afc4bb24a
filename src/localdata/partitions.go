package localdata

import "strings"

// 结构化存储的分区名
const (
	// PartitionLegacy 历史遗留的单一分区，自 v3 起拆分并删除
	PartitionLegacy = "keyval"
	// PartitionPersistent 长期保留的应用数据
	PartitionPersistent = "persistent"
	// PartitionSettings 用户偏好设置
	PartitionSettings = "settings"
	// PartitionBackups 迁移备份记录
	PartitionBackups = "backups"
)

// routeRule 分区路由规则
type routeRule struct {
	match     func(key string) bool
	partition string
}

// routeRules 拆分迁移的路由规则表
// 显式有序切片，首个命中的规则生效；规则顺序是行为的一部分，
// 不得依赖 map 遍历顺序
var routeRules = []routeRule{
	{func(key string) bool { return strings.HasSuffix(key, "_key") }, PartitionPersistent},
	{func(key string) bool { return strings.Contains(key, "preferences_") }, PartitionSettings},
	{func(key string) bool { return strings.HasSuffix(key, "data_backup") }, PartitionBackups},
}

// routePartition 按路由规则表为 key 选择目标分区
// 无规则命中时返回 false，调用方按既定策略丢弃该 key
func routePartition(key string) (string, bool) {
	for _, rule := range routeRules {
		if rule.match(key) {
			return rule.partition, true
		}
	}
	return "", false
}
