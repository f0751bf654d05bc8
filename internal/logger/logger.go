package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// 全局记录器实例
	log *zap.Logger
	// 确保只初始化一次
	once sync.Once
	// 当前日志级别，可在运行时调整
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 初始化全局记录器
func Init() {
	once.Do(func() {
		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		)

		log = zap.New(
			consoleCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	})
}

// SetDebug 切换调试日志
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// GetLogger 获取指定模块的记录器
func GetLogger(module string) *zap.SugaredLogger {
	if log == nil {
		Init()
	}
	return log.Named(module).Sugar()
}

// Sync 同步日志缓冲区
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
