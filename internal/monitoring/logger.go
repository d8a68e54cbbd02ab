package monitoring

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewZapLogf adapts a zap logger into a Logf-compatible function. A leading
// "[component] " tag, as used throughout the service, becomes a "component"
// field. Messages containing "failed" are logged at warn level, the rest
// at info.
func NewZapLogf(l *zap.Logger) func(format string, v ...interface{}) {
	if l == nil {
		return nil
	}
	return func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		zl := l
		if component, rest, ok := splitComponent(msg); ok {
			zl = l.With(zap.String("component", component))
			msg = rest
		}
		if strings.Contains(msg, "failed") {
			zl.Warn(msg)
			return
		}
		zl.Info(msg)
	}
}

func splitComponent(msg string) (component, rest string, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg, false
	}
	end := strings.Index(msg, "] ")
	if end < 2 || strings.ContainsAny(msg[1:end], " []") {
		return "", msg, false
	}
	return msg[1:end], msg[end+2:], true
}
