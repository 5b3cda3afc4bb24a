// Package structstore 提供带版本的多分区本地数据库
//
// 这是客户端结构化存储的底层实现（SQLite），模型与浏览器 IndexedDB 一致：
//
//  1. 存储由多个命名分区（object store）组成，每个分区是独立的键值集合
//  2. 数据库带有单调递增的整数版本号（PRAGMA user_version）
//  3. 以高于当前版本的目标版本调用 Open 会触发升级回调，
//     回调中的所有模式/数据变更在单个事务内执行，失败时整体回滚
//  4. 以低于当前版本的目标版本调用 Open 是不可恢复的错误
//
// 基本使用示例：
//
//	db, err := structstore.Open(ctx, "/path/to/appdata.db", 3,
//	    func(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
//	        if tx.OldVersion() < 1 {
//	            if err := h.CreateObjectStore("keyval"); err != nil {
//	                return err
//	            }
//	        }
//	        return nil
//	    })
package structstore
