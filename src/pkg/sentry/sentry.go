// Package sentry 提供 Sentry 错误监控的封装
// 用于收集迁移失败与程序崩溃日志，同时保护用户隐私
package sentry

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	// initialized 标记 Sentry 是否已初始化
	initialized bool
	// initMu 保护初始化状态
	initMu sync.RWMutex
)

// 敏感关键字列表，用于过滤敏感数据
// 本地存储的 key 和 value 都可能带到错误消息里，上报前必须清理
var sensitiveKeywords = []string{
	"cookie", "token", "password", "passwd", "secret", "key", "auth",
	"credential", "api_key", "apikey", "access_token", "refresh_token",
	"session", "sb-",
}

// 敏感 URL 参数正则表达式
var sensitiveURLPattern = regexp.MustCompile(`[?&](token|key|secret|password|auth|access_token|session)[=][^&]*`)

// Init 初始化 Sentry SDK
// dsn 为 Sentry DSN，留空则禁用
// environment 为环境标识（development/production）
// release 为版本号
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil // DSN 为空时不初始化
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       beforeSendHook,
		SampleRate:       1.0,
	})

	if err != nil {
		return err
	}

	// 设置匿名用户标识
	deviceID := GetAnonymousDeviceID()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID: deviceID,
		})
	})

	initMu.Lock()
	initialized = true
	initMu.Unlock()

	return nil
}

// IsInitialized 返回 Sentry 是否已初始化
func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// Flush 刷新所有待发送事件（程序退出前调用）
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// Recover 用于 goroutine 的 panic 恢复
// 应在 goroutine 开始时使用 defer 调用
// 注意：必须先调用 recover()，再检查 Sentry 状态，否则 panic 不会被捕获
func Recover() {
	err := recover()
	if err == nil {
		return
	}

	if IsInitialized() {
		hub := sentry.CurrentHub()
		if hub != nil {
			hub.Recover(err)
		}
	}
}

// CaptureException 捕获异常
func CaptureException(err error) {
	if !IsInitialized() || err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Go 启动一个新的 goroutine 并自动添加 panic 恢复
func Go(f func()) {
	go func() {
		defer Recover()
		f()
	}()
}

// beforeSendHook 在发送事件前清理敏感数据
func beforeSendHook(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Message != "" {
		event.Message = sanitizeString(event.Message)
	}

	for i := range event.Exception {
		if event.Exception[i].Value != "" {
			event.Exception[i].Value = sanitizeString(event.Exception[i].Value)
		}
		if event.Exception[i].Stacktrace != nil {
			for j := range event.Exception[i].Stacktrace.Frames {
				frame := &event.Exception[i].Stacktrace.Frames[j]
				frame.Vars = sanitizeVars(frame.Vars)
			}
		}
	}

	event.Extra = sanitizeMap(event.Extra)
	event.Tags = sanitizeTags(event.Tags)

	return event
}

// sanitizeString 清理字符串中的敏感数据
func sanitizeString(s string) string {
	result := s

	result = sensitiveURLPattern.ReplaceAllString(result, "$1=[REDACTED]")

	for _, keyword := range sensitiveKeywords {
		// 匹配 keyword=value 或 keyword: value 格式
		pattern := regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(keyword) + `)\s*[=:]\s*[^\s,}"\]]+`)
		result = pattern.ReplaceAllString(result, "$1=[REDACTED]")
	}

	return result
}

// sanitizeVars 清理变量中的敏感数据
func sanitizeVars(vars map[string]interface{}) map[string]interface{} {
	if vars == nil {
		return nil
	}

	result := make(map[string]interface{})
	for key, value := range vars {
		if isSensitiveKey(key) {
			result[key] = "[REDACTED]"
		} else if strVal, ok := value.(string); ok {
			result[key] = sanitizeString(strVal)
		} else {
			result[key] = value
		}
	}
	return result
}

// sanitizeMap 清理 map 中的敏感数据
func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	result := make(map[string]interface{})
	for key, value := range m {
		if isSensitiveKey(key) {
			result[key] = "[REDACTED]"
		} else if strVal, ok := value.(string); ok {
			result[key] = sanitizeString(strVal)
		} else if mapVal, ok := value.(map[string]interface{}); ok {
			result[key] = sanitizeMap(mapVal)
		} else {
			result[key] = value
		}
	}
	return result
}

// sanitizeTags 清理 tags 中的敏感数据
func sanitizeTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}

	result := make(map[string]string)
	for key, value := range tags {
		if isSensitiveKey(key) {
			result[key] = "[REDACTED]"
		} else {
			result[key] = sanitizeString(value)
		}
	}
	return result
}

// isSensitiveKey 检查键名是否为敏感键
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
