// Package logging provides the logger contract exposed through the
// container, an slog-backed logger service, and the LoggerAdmin tracker that
// materializes a scoped logger per requesting service.
package logging

import (
	"context"
	"log/slog"

	"github.com/c360/servicekit/property"
	"github.com/c360/servicekit/service"
)

// Level is the log level carried in service properties and honoured by
// container-provided loggers.
type Level int

// Log levels, most verbose first.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns a string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// slogLevel maps a Level onto slog's scale. Trace sits below slog's Debug.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelTrace:
		return slog.LevelDebug - 4
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseLevel converts a level name into a Level.
func ParseLevel(name string) (Level, bool) {
	switch name {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LevelProperty wraps a level as a property value for the "LogLevel" key.
func LevelProperty(l Level) property.Value {
	return property.EnumValue(l.String(), int64(l))
}

// LevelFromProperties reads the "LogLevel" property, falling back to the
// given default for absent or differently-typed values.
func LevelFromProperties(props property.Properties, fallback Level) Level {
	e, err := props.GetEnum(property.KeyLogLevel)
	if err != nil {
		return fallback
	}
	if e.Ordinal < int64(LevelTrace) || e.Ordinal > int64(LevelError) {
		return fallback
	}
	return Level(e.Ordinal)
}

// Logger is the interface runtime-created loggers expose to their consumer
// service. Obtain one by declaring a dependency on it; the LoggerAdmin
// tracker materializes a logger scoped to the requesting service.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	LogLevel() Level
	SetLogLevel(level Level)
}

// SlogLogger is a container service implementing Logger on log/slog.
type SlogLogger struct {
	base  *slog.Logger
	level Level
}

// NewSlogLoggerFactory returns a service factory producing SlogLogger
// instances on the given base logger. The factory honours the "LogLevel" and
// "TargetServiceId" properties the LoggerAdmin threads through.
func NewSlogLoggerFactory(base *slog.Logger) service.Factory {
	return func(_ *service.DependencyRegister, props property.Properties, _ *service.Manager) (service.Service, error) {
		logger := base
		if logger == nil {
			logger = slog.Default()
		}
		if target := props.GetUint(property.KeyTargetServiceID, 0); target != 0 {
			logger = logger.With("service", target)
		}
		return &SlogLogger{
			base:  logger,
			level: LevelFromProperties(props, LevelInfo),
		}, nil
	}
}

// Start implements service.Service.
func (l *SlogLogger) Start() service.StartBehaviour { return service.Succeeded }

// Stop implements service.Service.
func (l *SlogLogger) Stop() service.StartBehaviour { return service.Succeeded }

// Trace logs at trace level.
func (l *SlogLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }

// Debug logs at debug level.
func (l *SlogLogger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs at info level.
func (l *SlogLogger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *SlogLogger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs at error level.
func (l *SlogLogger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// LogLevel returns the current level.
func (l *SlogLogger) LogLevel() Level { return l.level }

// SetLogLevel changes the level.
func (l *SlogLogger) SetLogLevel(level Level) { l.level = level }

func (l *SlogLogger) log(level Level, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.base.Log(context.Background(), level.slogLevel(), msg, args...)
}
