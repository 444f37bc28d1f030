package logger

import (
	"log"
	"os"
	"strings"
)

// Log level names, ordered from least to most verbose.
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

// Config holds the logging section of the bridge configuration.
type Config struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	MaxSize int    `yaml:"max_size"`
	MaxAge  int    `yaml:"max_age"`
}

// GlobalLogging is read by the package-level LogXxx helpers. Set once at
// startup by NewLogger; the main loop and every component below it log
// through the helpers rather than carrying a Logger reference around.
var GlobalLogging *Config

// Logger wraps the standard logger with a verbosity threshold.
type Logger struct {
	*log.Logger
	level string
}

// NewLogger opens the configured sink (a file, falling back to stdout on
// failure) and installs it as the global logger.
func NewLogger(config *Config) *Logger {
	level := strings.ToLower(config.Level)
	if level == "" {
		level = LogLevelInfo
	}

	var output *os.File
	if config.File != "" {
		var err error
		output, err = os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Printf("failed to open log file %s: %v, falling back to stdout", config.File, err)
			output = os.Stdout
		}
	} else {
		output = os.Stdout
	}

	l := &Logger{
		Logger: log.New(output, "", log.LstdFlags|log.Lshortfile),
		level:  level,
	}

	GlobalLogging = config
	return l
}

func shouldLog(currentLevel, messageLevel string) bool {
	levels := []string{LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug, LogLevelTrace}

	currentIndex, messageIndex := -1, -1
	for i, level := range levels {
		if level == currentLevel {
			currentIndex = i
		}
		if level == messageLevel {
			messageIndex = i
		}
	}

	// Unknown level names are permissive rather than silent.
	if currentIndex == -1 || messageIndex == -1 {
		return true
	}
	return messageIndex <= currentIndex
}

func (l *Logger) Error(format string, args ...interface{}) {
	if shouldLog(l.level, LogLevelError) {
		l.Printf("ERROR "+format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if shouldLog(l.level, LogLevelWarn) {
		l.Printf("WARN  "+format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if shouldLog(l.level, LogLevelInfo) {
		l.Printf("INFO  "+format, args...)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if shouldLog(l.level, LogLevelDebug) {
		l.Printf("DEBUG "+format, args...)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	if shouldLog(l.level, LogLevelTrace) {
		l.Printf("TRACE "+format, args...)
	}
}

// LogStartup is always visible, independent of the configured level; used
// before GlobalLogging is installed (argument parsing, config load).
func LogStartup(format string, args ...interface{}) {
	log.Printf("STARTUP "+format, args...)
}

func LogError(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelError) {
		log.Printf("ERROR "+format, args...)
	}
}

func LogWarn(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelWarn) {
		log.Printf("WARN  "+format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelInfo) {
		log.Printf("INFO  "+format, args...)
	}
}

func LogDebug(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelDebug) {
		log.Printf("DEBUG "+format, args...)
	}
}

func LogTrace(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelTrace) {
		log.Printf("TRACE "+format, args...)
	}
}

// IsDebugEnabled reports whether debug-level messages are currently emitted.
func IsDebugEnabled() bool {
	return GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelDebug)
}

// IsTraceEnabled reports whether trace-level messages are currently emitted.
func IsTraceEnabled() bool {
	return GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelTrace)
}
