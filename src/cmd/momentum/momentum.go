package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/TheGameKnave/angular-momentum-sub001/src/configs"
	"github.com/TheGameKnave/angular-momentum-sub001/src/consts"
	"github.com/TheGameKnave/angular-momentum-sub001/src/flatstore"
	"github.com/TheGameKnave/angular-momentum-sub001/src/localdata"
	"github.com/TheGameKnave/angular-momentum-sub001/src/log"
	"github.com/TheGameKnave/angular-momentum-sub001/src/pkg/migration"
	"github.com/TheGameKnave/angular-momentum-sub001/src/pkg/sentry"
	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

var (
	confFile = ""
	debug    = false
)

func getConfig() (*configs.Config, error) {
	var config *configs.Config
	if confFile != "" {
		c, err := configs.NewConfigWithFile(confFile)
		if err != nil {
			return nil, err
		}
		config = c
	} else {
		config = configs.NewConfig()
	}
	if debug {
		config.Debug = true
	}
	return config, config.Verify()
}

func setup() (*configs.Config, *logrus.Logger, error) {
	// .env 不存在时静默跳过
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	config, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(config)

	if config.Sentry.Enable {
		if err := sentry.Init(config.Sentry.DSN, config.Sentry.Environment, consts.AppVersion); err != nil {
			logger.WithError(err).Warn("Sentry 初始化失败")
		}
	}
	return config, logger, nil
}

// runMigrate 执行完整的启动迁移序列
func runMigrate(c *kingpin.ParseContext) error {
	config, logger, err := setup()
	if err != nil {
		return err
	}
	defer sentry.Flush(2 * time.Second)

	info := consts.GetAppInfo()
	logger.WithFields(logrus.Fields{
		"version":    info.AppVersion,
		"build_time": info.BuildTime,
		"git_hash":   info.GitHash,
		"platform":   info.Platform,
	}).Infof("%s 本地数据迁移", info.AppName)

	manager := localdata.NewManager(config, logger)
	if err := manager.Start(context.Background()); err != nil {
		logger.WithError(err).Error("本地数据启动序列失败")
		sentry.CaptureException(err)
		return err
	}
	defer manager.Close()

	result := manager.FlatResult()
	logger.WithFields(logrus.Fields{
		"flat_version":   result.ToVersion,
		"struct_version": manager.Data().Version(),
	}).Info("本地数据已就绪")
	return nil
}

// readFlatMarker 读取扁平存储的版本标记
// 存储文件或标记不存在视为全新安装，返回零版本；文件损坏则返回错误
func readFlatMarker(config *configs.Config) (string, error) {
	store, err := flatstore.NewFileStore(config.FlatStorePath())
	if err != nil {
		return "", err
	}
	if v, ok := store.Get(migration.MarkerKey); ok {
		return v, nil
	}
	return "0.0.0", nil
}

// runStatus 打印两个存储的当前版本，不做任何修改
func runStatus(c *kingpin.ParseContext) error {
	config, logger, err := setup()
	if err != nil {
		return err
	}

	structVersion, err := structstore.ReadVersion(context.Background(), config.StructStorePath())
	if err != nil {
		return fmt.Errorf("读取结构化存储版本失败: %w", err)
	}

	registry := localdata.NewRegistry()
	flatMarker, err := readFlatMarker(config)
	if err != nil {
		logger.WithError(err).Warn("扁平存储无法读取，可能已损坏")
		flatMarker = "0.0.0"
	}

	flat := registry.FlatMigrations()
	latestFlat := "0.0.0"
	if len(flat) > 0 {
		latestFlat = flat[len(flat)-1].Version
	}

	fmt.Printf("扁平存储:   %s (最新 %s)\n", flatMarker, latestFlat)
	fmt.Printf("结构化存储: v%d (最新 v%d)\n", structVersion, registry.CurrentStructVersion())
	return nil
}

// runRollback 从最近的文件备份恢复结构化存储
func runRollback(c *kingpin.ParseContext) error {
	config, logger, err := setup()
	if err != nil {
		return err
	}

	guard := migration.NewFileGuard(config.StructStorePath(), logger)
	recovered, err := guard.CheckAndRecover()
	if err != nil {
		return err
	}
	if recovered {
		logger.Info("已根据锁文件完成恢复")
		return nil
	}
	return guard.RestoreLatest()
}

func main() {
	app := kingpin.New("momentum", fmt.Sprintf("%s 本地数据工具", consts.AppName))
	app.Flag("config", "配置文件路径").Short('c').StringVar(&confFile)
	app.Flag("debug", "输出调试日志").BoolVar(&debug)
	app.Version(consts.AppVersion)

	app.Command("migrate", "执行启动迁移序列").Default().Action(runMigrate)
	app.Command("status", "查看两个存储的版本状态").Action(runStatus)
	app.Command("rollback", "从最近的备份恢复结构化存储").Action(runRollback)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
