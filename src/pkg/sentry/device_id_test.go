package sentry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheGameKnave/angular-momentum-sub001/src/flatstore"
)

func newTestStore(t *testing.T) *flatstore.FileStore {
	t.Helper()
	store, err := flatstore.NewFileStore(filepath.Join(t.TempDir(), "appdata.json"))
	require.NoError(t, err)
	return store
}

// 启动时序是先初始化 Sentry（需要设备 ID）、后打开存储并绑定；
// 早期取到的内存 ID 必须在绑定时落盘，而不是每次启动都换一个
func TestDeviceID_BindAfterFirstUse(t *testing.T) {
	early := GetAnonymousDeviceID()
	require.Len(t, early, 32)

	store := newTestStore(t)
	BindStore(store)

	persisted, ok := store.Get(deviceIDKey)
	require.True(t, ok)
	assert.Equal(t, early, persisted)
	assert.Equal(t, early, GetAnonymousDeviceID())
}

func TestDeviceID_PersistedIDWins(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(deviceIDKey, "0123456789abcdef0123456789abcdef"))

	BindStore(store)

	// 存储中已有 ID 时以其为准，覆盖内存中的临时值
	assert.Equal(t, "0123456789abcdef0123456789abcdef", GetAnonymousDeviceID())
}

func TestDeviceID_StableAcrossRebind(t *testing.T) {
	store := newTestStore(t)
	BindStore(store)
	first := GetAnonymousDeviceID()

	// 同一存储重新绑定（模拟下次启动）得到相同 ID
	reopened, err := flatstore.NewFileStore(store.Path())
	require.NoError(t, err)
	BindStore(reopened)
	assert.Equal(t, first, GetAnonymousDeviceID())
}
