package ssh

import (
	"io"

	"github.com/sirupsen/logrus"
)

// discardLogger is the zero-configuration logger a ClientConfig falls back
// to when Log is nil: structured logging stays wired through logrus
// throughout this package, but nothing is written anywhere.
var discardLogger logrus.FieldLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// NewLogger returns a logrus.Logger configured the way the rest of this
// package expects to log: JSON-free text output, level controlled by the
// caller. It exists so callers don't need to import logrus themselves just
// to build a ClientConfig.Log.
func NewLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	return l
}
