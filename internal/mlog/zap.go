package mlog

import (
	"os"

	"go.uber.org/zap"
)

// ZapLogger is the go.uber.org/zap backed implementation of Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger for the given level name
// ("debug", "info", "warn", "error"). Production environments get the
// JSON encoder; anything else gets the human-readable console encoder,
// following the teacher's ENV_NAME-driven split.
func NewZapLogger(level string, envName string) (*ZapLogger, error) {
	var cfg zap.Config

	if envName == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.Level = lvl

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: l.Sugar()}, nil
}

func (z *ZapLogger) Info(args ...any)            { z.sugar.Info(args...) }
func (z *ZapLogger) Infof(f string, args ...any) { z.sugar.Infof(f, args...) }

func (z *ZapLogger) Warn(args ...any)            { z.sugar.Warn(args...) }
func (z *ZapLogger) Warnf(f string, args ...any) { z.sugar.Warnf(f, args...) }

func (z *ZapLogger) Error(args ...any)            { z.sugar.Error(args...) }
func (z *ZapLogger) Errorf(f string, args ...any) { z.sugar.Errorf(f, args...) }

func (z *ZapLogger) Debug(args ...any)            { z.sugar.Debug(args...) }
func (z *ZapLogger) Debugf(f string, args ...any) { z.sugar.Debugf(f, args...) }

func (z *ZapLogger) Fatal(args ...any) {
	z.sugar.Error(args...)
	_ = z.Sync()
	os.Exit(1)
}

func (z *ZapLogger) Fatalf(f string, args ...any) {
	z.sugar.Errorf(f, args...)
	_ = z.Sync()
	os.Exit(1)
}

func (z *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: z.sugar.With(fields...)}
}

func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}
