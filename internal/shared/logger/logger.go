package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.DebugLevel)
	once   sync.Once
)

// GetLogger returns zap.Logger instance, but using singleton pattern creates only one reusable instace.
// Development config by default, AUCTION_LOG__FORMAT=production switches to JSON output.
// Packages capture it at init time, so later changes go through Configure and SetLevel.
func GetLogger() *zap.Logger {
	once.Do(func() {
		_ = godotenv.Load()

		format := os.Getenv("AUCTION_LOG__FORMAT")
		if format == "production" {
			level.SetLevel(zap.InfoLevel)
		}
		var err error
		logger, err = build(format)
		if err != nil {
			panic("failed logger setup : " + err.Error())
		}
	})
	return logger
}

func build(format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "", "development":
		cfg = zap.NewDevelopmentConfig()
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = level
	return cfg.Build()
}

// Configure rebuilds the shared logger with the given output format and level.
// Loggers already returned by GetLogger switch over too. It must run before any
// goroutine logs.
func Configure(format, lvl string) error {
	l := GetLogger()
	built, err := build(format)
	if err != nil {
		return err
	}
	if lvl != "" {
		if err := SetLevel(lvl); err != nil {
			return err
		}
	}
	_ = l.Sync()
	*l = *built
	return nil
}

// SetLevel changes the level of the shared logger, e.g. "info" or "warn".
func SetLevel(l string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", l, err)
	}
	level.SetLevel(lvl)
	return nil
}
