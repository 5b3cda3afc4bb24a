package sentry

import (
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	uuid "github.com/satori/go.uuid"

	"github.com/TheGameKnave/angular-momentum-sub001/src/flatstore"
)

// deviceIDKey 扁平存储中保存设备 ID 的 key
// 带 anonymous_ 前缀，不会被作用域迁移重命名
const deviceIDKey = "anonymous_device_id"

var (
	deviceMu sync.Mutex
	// cachedDeviceID 当前进程使用的设备 ID
	// 存储绑定之前是内存中的临时值，绑定时与持久化的值合并
	cachedDeviceID string
)

// GetAnonymousDeviceID 获取匿名设备 ID
// 存储尚未绑定时返回内存中的临时 ID；BindStore 之后返回持久化的 ID
// 返回 32 位十六进制字符串（去掉连字符的 UUID）
func GetAnonymousDeviceID() string {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	if cachedDeviceID == "" {
		cachedDeviceID = generateUUID()
	}
	return cachedDeviceID
}

// BindStore 绑定扁平存储并解析持久化的设备 ID
// 存储中已有 ID 时以其为准，否则把当前内存 ID 写入存储。
// Sentry 初始化发生在绑定之前也没关系：解析出的 ID 会同步回 Sentry 的
// 用户标识
func BindStore(store flatstore.Store) {
	deviceMu.Lock()
	if id, ok := store.Get(deviceIDKey); ok && id != "" {
		cachedDeviceID = id
	} else {
		if cachedDeviceID == "" {
			cachedDeviceID = generateUUID()
		}
		// 保存失败不影响本次使用，下次启动重新生成
		_ = store.Set(deviceIDKey, cachedDeviceID)
	}
	id := cachedDeviceID
	deviceMu.Unlock()

	if IsInitialized() {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetUser(sentry.User{ID: id})
		})
	}
}

// generateUUID 生成一个新的 UUID（去掉连字符）
func generateUUID() string {
	id := uuid.Must(uuid.NewV4())
	return strings.ReplaceAll(id.String(), "-", "")
}
