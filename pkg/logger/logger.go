package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for console output
const (
	colorReset        = "\033[0m"
	colorCyan         = "\033[36m"
	colorGreen        = "\033[32m"
	colorBrightRed    = "\033[91m"
	colorBrightYellow = "\033[93m"
	colorBrightGray   = "\033[90m"
)

// Column widths for aligned console output
const (
	serviceNameWidth = 14
	logLevelWidth    = 5
)

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger writes formatted log lines to the console.
type Logger struct {
	serviceName string
	version     string

	mu           sync.Mutex
	minLevel     Level
	colorEnabled bool
}

// New creates a new logger instance for a named service.
func New(serviceName, version string) *Logger {
	return &Logger{
		serviceName:  serviceName,
		version:      version,
		minLevel:     LevelInfo,
		colorEnabled: isTerminal(),
	}
}

// SetLevel sets the minimum level that will be written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// isTerminal checks if stdout is a terminal (for color support)
func isTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

func (l *Logger) colorFor(level Level) string {
	if !l.colorEnabled {
		return ""
	}
	switch level {
	case LevelDebug:
		return colorBrightGray
	case LevelInfo:
		return colorGreen
	case LevelWarn:
		return colorBrightYellow
	default:
		return colorBrightRed
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	min := l.minLevel
	l.mu.Unlock()
	if level < min {
		return
	}

	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	color := l.colorFor(level)
	reset := ""
	cyan := ""
	if l.colorEnabled {
		reset = colorReset
		cyan = colorCyan
	}

	service := l.serviceName
	if len(service) > serviceNameWidth {
		service = service[:serviceNameWidth-1] + "…"
	}

	fmt.Printf("%s[%s]%s [%-*s] [%s%-*s%s] %s\n",
		cyan, timestamp, reset, serviceNameWidth, service, color, logLevelWidth, level.String(), reset, message)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatalf logs a formatted fatal message and exits.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}
