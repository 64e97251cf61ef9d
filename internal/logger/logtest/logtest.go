// Package logtest provides a Logger that writes through testing.TB.
package logtest

import (
	"testing"

	"onboard/internal/logger"

	"go.uber.org/zap/zaptest"
)

// New returns a Logger whose output appears with the test's own logs.
func New(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
