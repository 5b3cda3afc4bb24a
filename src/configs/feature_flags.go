package configs

// 功能特征标志
// 用于控制正在开发中的功能是否启用
// 开发者可以在本地修改这些值来启用/禁用功能

// EnableBackupPruning 控制是否在每次启动时清理多余的迁移前备份记录
// false: 备份记录无限期保留（当前行为）
// true: backups 分区仅保留最近的若干条备份记录
const EnableBackupPruning = false
