// Package logutil adds the nil handling that library packages need on top
// of the shared logger.
package logutil

import "github.com/TheCacophonyProject/go-utils/logging"

// Discard returns a logger that only reports panics, used by tests and by
// library callers that pass a nil logger.
func Discard() *logging.Logger {
	return logging.NewLogger("panic")
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *logging.Logger) *logging.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
