package migration

import "strings"

const (
	// MarkerKey 扁平存储中记录已应用迁移版本的 key
	MarkerKey = "app_data_version"
	// ConsentKey Cookie 同意状态 key
	ConsentKey = "cookie_consent_status"

	// AnonymousPrefix 匿名会话作用域前缀
	AnonymousPrefix = "anonymous_"
	// UserPrefix 已登录用户作用域前缀（形如 user_<id>_）
	UserPrefix = "user_"

	// authProviderPrefix 外部认证服务（Supabase）的保留命名空间前缀
	authProviderPrefix = "sb-"
)

// systemKeys 固定的系统保留 key 集合
var systemKeys = map[string]struct{}{
	MarkerKey:  {},
	ConsentKey: {},
}

// IsSystemKey 返回 key 是否为系统保留 key
// 系统 key 永远不会被迁移重命名或移动
func IsSystemKey(key string) bool {
	if _, ok := systemKeys[key]; ok {
		return true
	}
	return strings.HasPrefix(key, authProviderPrefix)
}

// IsScopedKey 返回 key 是否已带作用域前缀
// 已有作用域的 key 不会被重复加前缀
func IsScopedKey(key string) bool {
	return strings.HasPrefix(key, AnonymousPrefix) || strings.HasPrefix(key, UserPrefix)
}

// IsCandidateKey 返回 key 是否为迁移候选
// 候选 key 既不是系统 key 也未带作用域，三个判定对任意字符串恰好命中一个
func IsCandidateKey(key string) bool {
	return !IsSystemKey(key) && !IsScopedKey(key)
}
