package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var logLevels = map[LogLevel]int{
	LogLevelDebug: 1,
	LogLevelInfo:  2,
	LogLevelWarn:  3,
	LogLevelError: 4,
}

type Logger interface {
	Log(level LogLevel, format string, args ...interface{})
}

type DefaultLogger struct {
	logMode LogLevel
	logger  *log.Logger
	file    *os.File
}

// NewDefaultLogger logs to stdout and, if logFile is set, appends to that file too.
func NewDefaultLogger(mode LogLevel, logFile string) (*DefaultLogger, error) {
	if logFile == "" {
		return NewLogger(mode, os.Stdout), nil
	}

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}

	l := NewLogger(mode, io.MultiWriter(os.Stdout, file))
	l.file = file
	return l, nil
}

func NewLogger(mode LogLevel, w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		logMode: mode,
		logger:  log.New(w, "", log.LstdFlags),
	}
}

func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level == "" {
		return LogLevelInfo, nil
	}
	if _, ok := logLevels[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func (l *DefaultLogger) Log(level LogLevel, format string, args ...interface{}) {
	currentLevel := logLevels[l.logMode]
	messageLevel := logLevels[level]

	if messageLevel >= currentLevel {
		l.logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
	}
}

func (l *DefaultLogger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard drops every message.
type Discard struct{}

func (Discard) Log(LogLevel, string, ...interface{}) {}
