package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TheGameKnave/angular-momentum-sub001/src/configs"
)

// New 初始化全局 logger 并返回
// 日志同时写到 stderr 和（可选的）日志文件
func New(config *configs.Config) *logrus.Logger {
	logLevel := logrus.InfoLevel
	if config != nil && config.Debug {
		logLevel = logrus.DebugLevel
	}

	writers := []io.Writer{os.Stderr}
	if config != nil {
		outputFolder := config.Log.OutPutFolder
		if _, err := os.Stat(outputFolder); err == nil {
			if config.Log.SaveEveryLog {
				runID := time.Now().Format("run-2006-01-02-15-04-05")
				logLocation := filepath.Join(outputFolder, runID+".log")
				if logFile, err := os.OpenFile(logLocation, os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					writers = append(writers, logFile)
				} else {
					logrus.WithError(err).Warnf("无法打开日志文件: %s", logLocation)
				}
			}
			if config.Log.SaveLastLog {
				logLocation := filepath.Join(outputFolder, "momentum.log")
				if logFile, err := os.OpenFile(logLocation, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644); err == nil {
					writers = append(writers, logFile)
				} else {
					logrus.WithError(err).Warnf("无法打开日志文件: %s", logLocation)
				}
			}
		}
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if config != nil && config.Debug {
		logrus.SetReportCaller(true)
	}
	logrus.SetLevel(logLevel)

	return logrus.StandardLogger()
}
