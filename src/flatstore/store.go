package flatstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store 扁平键值存储接口
// 对应浏览器 localStorage 模型：同步、全局、无事务
type Store interface {
	// Get 返回 key 对应的值，第二个返回值表示 key 是否存在
	Get(key string) (string, bool)
	// Set 写入键值对
	Set(key, value string) error
	// Remove 删除键值对，key 不存在时为空操作
	Remove(key string) error
	// Keys 返回调用时刻所有 key 的快照（已排序）
	Keys() []string
	// Len 返回当前条目数
	Len() int
}

// FileStore 文件支持的扁平存储实现
// 所有写操作同步落盘（写临时文件后原子重命名）
type FileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// NewFileStore 打开（或创建）文件支持的扁平存储
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	s := &FileStore{
		path: path,
		data: make(map[string]string),
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取存储文件失败: %w", err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.data); err != nil {
			return nil, fmt.Errorf("解析存储文件失败: %w", err)
		}
	}
	return s, nil
}

// Path 返回存储文件路径
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.persistLocked()
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.persistLocked()
}

func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot 返回当前全部内容的拷贝
func (s *FileStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]string, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return snapshot
}

// persistLocked 将当前内容写入文件，调用方必须持有写锁
func (s *FileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化存储内容失败: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("写入存储文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换存储文件失败: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
