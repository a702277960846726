// Package observability provides the structured logging and Prometheus metrics
// of the kater host.
package observability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/kater/internal/config"
)

// Components driven by the tick loop. Their entries are sampled.
var tickComponents = map[string]bool{
	"engine": true,
	"loop":   true,
}

// Logging is the host's root logger and the level it filters at. Level can be
// changed at runtime; it serves GET and PUT as an http.Handler.
type Logging struct {
	Root  *zap.Logger
	Level zap.AtomicLevel

	tickSample int
}

// NewLogging builds the host logger for one player. Every entry carries
// service=kater and the player's id.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured Logging or a non-nil error.
func NewLogging(cfg config.LoggingConfig, playerID uuid.UUID) (*Logging, error) {
	return newLogging(cfg, playerID)
}

func newLogging(cfg config.LoggingConfig, playerID uuid.UUID, opts ...zap.Option) (*Logging, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	atom := zap.NewAtomicLevelAt(level)
	zapCfg.Level = atom
	// Sampling is applied per component instead.
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	root := base.With(
		zap.String("service", "kater"),
		zap.String("player_id", playerID.String()),
	)
	return &Logging{Root: root, Level: atom, tickSample: cfg.TickSample}, nil
}

// Component returns the logger of the named host component. The engine and
// loop loggers keep at most tickSample identical entries per second.
func (l *Logging) Component(name string) *zap.Logger {
	logger := l.Root.Named(name)
	if l.tickSample <= 0 || !tickComponents[name] {
		return logger
	}
	first := l.tickSample
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(c, time.Second, first, 0)
	}))
}

// Sync flushes buffered entries.
func (l *Logging) Sync() error {
	return l.Root.Sync()
}
