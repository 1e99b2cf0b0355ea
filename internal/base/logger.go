package base

import (
	"log"
	"os"

	"github.com/cockroachdb/redact"
)

// Logger is the logging surface threaded through the engine, matching
// Pebble's own base.Logger shape.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger writes to the stdlib log package with plain Printf
// formatting: arguments are printed as given, without redaction.
// RedactKey is a separate helper a call site can use to wrap a user
// key before logging it.
type DefaultLogger struct {
	*log.Logger
}

// NewDefaultLogger returns a Logger writing to stderr with a timestamp
// prefix, the same convention the teacher's cloud package uses for its
// own diagnostic fmt.Println calls.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{Logger: log.New(os.Stderr, "oblsm: ", log.LstdFlags)}
}

func (l *DefaultLogger) Infof(format string, args ...interface{})  { l.Printf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...interface{}) { l.Printf(format, args...) }
func (l *DefaultLogger) Fatalf(format string, args ...interface{}) { l.Logger.Fatalf(format, args...) }

// RedactKey wraps a user key for safe inclusion in a log format string,
// so keys and values (arbitrary application data) don't leak into logs
// verbatim by default.
func RedactKey(key []byte) redact.RedactableString {
	return redact.Sprintf("%x", key)
}
