package logger

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu        sync.RWMutex
	sugar     = newConsoleLogger(zapcore.InfoLevel)
	useSentry bool
)

func encoderConfig() zapcore.EncoderConfig {
	conf := zap.NewProductionEncoderConfig()
	conf.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.EncodeLevel = zapcore.CapitalLevelEncoder
	return conf
}

func newConsoleLogger(level zapcore.Level) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// InitLogger 初始化日志: 控制台 + 按时间/大小滚动的文件, sentryDsn 非空时 error 级别日志同时上报 sentry
func InitLogger(level, name, path string, maxAge, rotationTime time.Duration, rotationSize int64, sentryDsn string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	writer, err := rotatelogs.New(
		filepath.Join(path, name+".%Y%m%d%H.log"),
		rotatelogs.WithLinkName(filepath.Join(path, name+".log")),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotationTime),
		rotatelogs.WithRotationSize(rotationSize),
	)
	if err != nil {
		return err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(writer), lvl),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), lvl),
	)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if sentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: sentryDsn, ServerName: name}); err != nil {
			return err
		}
		opts = append(opts, zap.Hooks(func(entry zapcore.Entry) error {
			if entry.Level >= zapcore.ErrorLevel {
				sentry.CaptureMessage(entry.Message)
			}
			return nil
		}))
	}

	mu.Lock()
	defer mu.Unlock()
	_ = sugar.Sync()
	sugar = zap.New(core, opts...).Sugar()
	useSentry = sentryDsn != ""
	return nil
}

// SetLevel 只影响控制台日志, 测试里用来压低输出
func SetLevel(level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	sugar = newConsoleLogger(level)
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(args ...interface{}) { get().Debug(args...) }

func Debugf(template string, args ...interface{}) { get().Debugf(template, args...) }

func Info(args ...interface{}) { get().Info(args...) }

func Infof(template string, args ...interface{}) { get().Infof(template, args...) }

func Warn(args ...interface{}) { get().Warn(args...) }

func Warnf(template string, args ...interface{}) { get().Warnf(template, args...) }

func Error(args ...interface{}) { get().Error(args...) }

func Errorf(template string, args ...interface{}) { get().Errorf(template, args...) }

// Sync flushes buffered entries, and pending sentry events when sentry is enabled.
func Sync() {
	_ = get().Sync()
	mu.RLock()
	flush := useSentry
	mu.RUnlock()
	if flush {
		sentry.Flush(2 * time.Second)
	}
}
