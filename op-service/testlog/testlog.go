// Package testlog provides a log.Logger that writes through testing.T.Log,
// so that test output is correctly attributed and silenced by `go test -v`
// filtering like any other test log line.
package testlog

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

type tWriter struct {
	t testing.TB
}

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Logger returns a logger that writes to t at the given minimum level.
func Logger(t testing.TB, lvl slog.Level) log.Logger {
	h := log.NewTerminalHandlerWithLevel(tWriter{t}, lvl, false)
	return log.NewLogger(h)
}
