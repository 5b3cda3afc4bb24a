package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Log 日志配置
type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveLastLog  bool   `yaml:"save_last_log" json:"save_last_log"`
	SaveEveryLog bool   `yaml:"save_every_log" json:"save_every_log"`
}

// Sentry 错误上报配置
type Sentry struct {
	Enable      bool   `yaml:"enable" json:"enable"`
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

var defaultSentry = Sentry{
	Enable:      false,
	DSN:         "",
	Environment: "production",
}

// Storage 本地存储配置
type Storage struct {
	// FlatStoreFile 扁平存储文件名（相对于 AppDataPath）
	FlatStoreFile string `yaml:"flat_store_file" json:"flat_store_file"`
	// StructStoreFile 结构化存储数据库文件名（相对于 AppDataPath）
	StructStoreFile string `yaml:"struct_store_file" json:"struct_store_file"`
	// CacheSize 读缓存条目数上限
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

var defaultStorage = Storage{
	FlatStoreFile:   "appdata.json",
	StructStoreFile: "appdata.db",
	CacheSize:       256,
}

// Config 应用配置
type Config struct {
	File string `yaml:"-" json:"-"`

	Debug       bool    `yaml:"debug" json:"debug"`
	AppDataPath string  `yaml:"app_data_path" json:"app_data_path"`
	Log         Log     `yaml:"log" json:"log"`
	Sentry      Sentry  `yaml:"sentry" json:"sentry"`
	Storage     Storage `yaml:"storage" json:"storage"`
}

var defaultConfig = Config{
	Debug:       false,
	AppDataPath: "",
	Log: Log{
		OutPutFolder: "./",
		SaveLastLog:  true,
		SaveEveryLog: false,
	},
	Sentry:  defaultSentry,
	Storage: defaultStorage,
	File:    "",
}

func NewConfig() *Config {
	config := defaultConfig
	newConfigPostProcess(&config)
	return &config
}

func newConfigPostProcess(c *Config) {
	if c.AppDataPath == "" {
		c.AppDataPath = ".appdata"
	}
	if c.Storage.FlatStoreFile == "" {
		c.Storage.FlatStoreFile = defaultStorage.FlatStoreFile
	}
	if c.Storage.StructStoreFile == "" {
		c.Storage.StructStoreFile = defaultStorage.StructStoreFile
	}
	if c.Storage.CacheSize <= 0 {
		c.Storage.CacheSize = defaultStorage.CacheSize
	}
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("配置不存在")
	}
	if c.AppDataPath == "" {
		return fmt.Errorf("应用数据目录未配置")
	}
	if _, err := os.Stat(c.Log.OutPutFolder); err != nil {
		return fmt.Errorf(`日志输出路径 "%s" 不存在`, c.Log.OutPutFolder)
	}
	if c.Sentry.Enable && c.Sentry.DSN == "" {
		return fmt.Errorf("已启用 Sentry 但未配置 DSN")
	}
	return nil
}

// FlatStorePath 返回扁平存储文件的完整路径
func (c *Config) FlatStorePath() string {
	return filepath.Join(c.AppDataPath, c.Storage.FlatStoreFile)
}

// StructStorePath 返回结构化存储数据库文件的完整路径
func (c *Config) StructStorePath() string {
	return filepath.Join(c.AppDataPath, c.Storage.StructStoreFile)
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := defaultConfig
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	newConfigPostProcess(&config)
	return &config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can`t open file: %s", file)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	return config, nil
}

// Marshal 将配置写回配置文件
func (c *Config) Marshal() error {
	if c.File == "" {
		return fmt.Errorf("config path not set")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.File, b, 0644)
}
