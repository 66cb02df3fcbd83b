package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	instance = zap.NewNop()
	mu       sync.RWMutex
	once     sync.Once
)

type Config struct {
	Development bool
	Level       string
}

// New builds the process logger. Only the first call takes effect.
func New(cfg Config) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		var zc zap.Config
		if cfg.Development {
			zc = zap.NewDevelopmentConfig()
		} else {
			zc = zap.NewProductionConfig()
		}
		if cfg.Level != "" {
			var lvl zapcore.Level
			if err = lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
				return
			}
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}

		var l *zap.Logger
		l, err = zc.Build()
		if err != nil {
			return
		}

		mu.Lock()
		instance = l
		mu.Unlock()
	})
	return L(), err
}

// L returns the process logger, a no-op logger until New succeeds.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func Sync() {
	_ = L().Sync()
}
