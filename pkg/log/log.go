package log

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const (
	// DefaultLoggerFlag is the standard library flag set used by the default logger
	DefaultLoggerFlag = log.Ldate | log.Ltime | log.Lmicroseconds
)

var (
	defaultLogger *Logger
	defaultLock   sync.RWMutex
)

func init() {
	defaultLogger = New(os.Stdout, "", DefaultLoggerFlag, LogLevelInfo)
}

type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (level LogLevel) String() string {
	switch level {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a log level string into a LogLevel.
// Valid log levels are: error, warn, info, debug, trace.
func ParseLogLevel(level string) (LogLevel, error) {
	switch level {
	case "error":
		return LogLevelError, nil
	case "warn":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "trace":
		return LogLevelTrace, nil
	default:
		return LogLevelError, fmt.Errorf("unknown log level: %s", level)
	}
}

// SetDefaultLogger replaces the logger used by the package level functions.
func SetDefaultLogger(logger *Logger) {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	defaultLogger = logger
}

// Default returns the logger used by the package level functions.
func Default() *Logger {
	defaultLock.RLock()
	defer defaultLock.RUnlock()
	return defaultLogger
}

func SetLevel(level LogLevel) {
	Default().SetLevel(level)
	Default().Info("Log level set to %s", level)
}

type Logger struct {
	logger    *log.Logger
	level     *levelHolder
	component string
}

type levelHolder struct {
	lock  sync.RWMutex
	level LogLevel
}

func New(out io.Writer, prefix string, flag int, level LogLevel) *Logger {
	return &Logger{
		logger: log.New(out, prefix, flag),
		level:  &levelHolder{level: level},
	}
}

// With returns a child logger that tags every entry with the given component.
// The child shares its parent's output and level.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		logger:    l.logger,
		level:     l.level,
		component: component,
	}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.lock.Lock()
	defer l.level.lock.Unlock()
	l.level.level = level
}

func (l *Logger) Level() LogLevel {
	l.level.lock.RLock()
	defer l.level.lock.RUnlock()
	return l.level.level
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if level > l.Level() {
		return
	}
	logEntry := map[string]interface{}{
		"level": level.String(),
		"msg":   fmt.Sprintf(format, args...),
	}
	if l.component != "" {
		logEntry["component"] = l.component
	}
	msgBytes, _ := json.Marshal(logEntry)
	l.logger.Print(string(msgBytes))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogLevelError, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogLevelWarn, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogLevelInfo, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogLevelDebug, format, args...)
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.logf(LogLevelTrace, format, args...)
}

func Info(format string, args ...interface{}) {
	Default().Info(format, args...)
}

func Error(format string, args ...interface{}) {
	Default().Error(format, args...)
}

func Warn(format string, args ...interface{}) {
	Default().Warn(format, args...)
}

func Debug(format string, args ...interface{}) {
	Default().Debug(format, args...)
}

func Trace(format string, args ...interface{}) {
	Default().Trace(format, args...)
}
