// Package oplog wires go-ethereum's structured logger the way every op-*
// binary in the source tree does: a single constructor picking between a
// human-readable terminal handler and a JSON handler, with a level filter
// applied at the handler, not at each call site.
package oplog

import (
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// NewLogger builds a root logger for a binary's main function. Individual
// components should narrow it further with logger.New("key", value) rather
// than constructing their own.
func NewLogger(out io.Writer, format Format, level slog.Level) log.Logger {
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = log.JSONHandlerWithLevel(out, level)
	default:
		handler = log.NewTerminalHandlerWithLevel(out, level, true)
	}
	return log.NewLogger(handler)
}

// NewDefault is a convenience constructor: text format to stderr at info
// level.
func NewDefault() log.Logger {
	return NewLogger(os.Stderr, FormatText, log.LevelInfo)
}
