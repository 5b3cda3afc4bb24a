package flatstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok := s.Get("missing")
	assert.False(t, ok)

	require.NoError(t, s.Set("foo", "bar"))
	v, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Remove("foo"))
	_, ok = s.Get("foo")
	assert.False(t, ok)

	// 删除不存在的 key 是空操作
	require.NoError(t, s.Remove("foo"))
}

func TestFileStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))

	// 重新打开应能读回全部内容
	s2, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok := s2.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, s2.Len())
}

func TestFileStore_KeysSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("c", "3"))

	keys := s.Keys()
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	// 快照不受后续写入影响
	require.NoError(t, s.Set("d", "4"))
	assert.Len(t, keys, 3)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestFileStore_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdata.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", "1"))

	snapshot := s.Snapshot()
	assert.Equal(t, map[string]string{"a": "1"}, snapshot)

	// 修改快照不影响存储
	snapshot["a"] = "changed"
	v, _ := s.Get("a")
	assert.Equal(t, "1", v)
}
