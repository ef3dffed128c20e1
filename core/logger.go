package core

import (
	"fmt"
	"log"
)

// Logger is the structured logging interface the kernel writes through.
// Implementations can bridge to logrus, zap, etc.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log message.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger is a simple logger implementation using the standard log package.
type DefaultLogger struct{}

// NewDefaultLogger creates a new DefaultLogger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log("DEBUG", msg, fields...) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log("INFO", msg, fields...) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log("WARN", msg, fields...) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.log("ERROR", msg, fields...) }

func (l *DefaultLogger) log(level, msg string, fields ...Field) {
	logMsg := fmt.Sprintf("[%s] %s", level, msg)
	if len(fields) > 0 {
		logMsg += " {"
		for i, f := range fields {
			if i > 0 {
				logMsg += ", "
			}
			logMsg += fmt.Sprintf("%s: %v", f.Key, f.Value)
		}
		logMsg += "}"
	}
	log.Println(logMsg)
}

// NoOpLogger discards all log messages. Useful for tests or when logging
// is not desired.
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
