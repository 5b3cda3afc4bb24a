package structstore

import (
	"database/sql"
	"fmt"
	"regexp"
)

// 分区名白名单，防止拼接 SQL 时出现注入
var partitionNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validatePartitionName(name string) error {
	if !partitionNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPartition, name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// Handle 升级期间的数据库句柄，提供分区管理操作
// 所有操作与升级事务共享同一个事务，升级失败时一并回滚
type Handle struct {
	tx *sql.Tx
}

// CreateObjectStore 创建分区
func (h *Handle) CreateObjectStore(name string) error {
	if err := validatePartitionName(name); err != nil {
		return err
	}
	_, err := h.tx.Exec(fmt.Sprintf(
		`CREATE TABLE %s (key TEXT PRIMARY KEY, value TEXT NOT NULL)`, quoteIdent(name),
	))
	if err != nil {
		return fmt.Errorf("创建分区 %s 失败: %w", name, err)
	}
	return nil
}

// HasObjectStore 返回分区是否已存在
func (h *Handle) HasObjectStore(name string) (bool, error) {
	if err := validatePartitionName(name); err != nil {
		return false, err
	}
	var count int
	err := h.tx.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteObjectStore 删除分区及其全部数据
func (h *Handle) DeleteObjectStore(name string) error {
	if err := validatePartitionName(name); err != nil {
		return err
	}
	_, err := h.tx.Exec(fmt.Sprintf(`DROP TABLE %s`, quoteIdent(name)))
	if err != nil {
		return fmt.Errorf("删除分区 %s 失败: %w", name, err)
	}
	return nil
}

// UpgradeTx 升级事务，提供分区内的数据操作
type UpgradeTx struct {
	tx         *sql.Tx
	oldVersion int64
	newVersion int64
}

// OldVersion 返回升级前的版本号
func (t *UpgradeTx) OldVersion() int64 {
	return t.oldVersion
}

// NewVersion 返回升级的目标版本号
func (t *UpgradeTx) NewVersion() int64 {
	return t.newVersion
}

// ObjectStore 返回指定分区的数据操作句柄
func (t *UpgradeTx) ObjectStore(name string) (*ObjectStore, error) {
	if err := validatePartitionName(name); err != nil {
		return nil, err
	}
	return &ObjectStore{tx: t.tx, name: name}, nil
}

// ObjectStore 升级事务内单个分区的数据操作
type ObjectStore struct {
	tx   *sql.Tx
	name string
}

// GetAllKeys 返回分区内所有字符串 key 的快照
// 非字符串 key 被跳过（底层引擎允许但应用从不使用的情况）
func (s *ObjectStore) GetAllKeys() ([]string, error) {
	rows, err := s.tx.Query(fmt.Sprintf(`SELECT key FROM %s ORDER BY key`, quoteIdent(s.name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKeys(rows)
}

// Get 读取 key 对应的值，第二个返回值表示 key 是否存在
func (s *ObjectStore) Get(key string) (string, bool, error) {
	var value string
	err := s.tx.QueryRow(
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, quoteIdent(s.name)), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put 写入键值对，已存在时覆盖
func (s *ObjectStore) Put(key, value string) error {
	_, err := s.tx.Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)`, quoteIdent(s.name)),
		key, value,
	)
	return err
}

// Delete 删除键值对
func (s *ObjectStore) Delete(key string) error {
	_, err := s.tx.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, quoteIdent(s.name)), key,
	)
	return err
}

// scanKeys 从 rows 扫描 key 列表，跳过非字符串 key
func scanKeys(rows *sql.Rows) ([]string, error) {
	var keys []string
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		switch v := raw.(type) {
		case string:
			keys = append(keys, v)
		case []byte:
			keys = append(keys, string(v))
		default:
			// 非字符串 key，跳过
		}
	}
	return keys, rows.Err()
}
