package debug

import (
	"io"
	"log/slog"
)

// L receives warnings about rejected requests and protocol inconsistencies.
// It discards everything until Init is called, except in debug builds which
// log to stderr.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures Init.
type Options struct {
	Writer io.Writer  // Destination, nil discards all output
	Level  slog.Level // Minimum level
	JSON   bool       // Use the JSON handler instead of the text handler
}

// Init replaces L. It must be called before any driver is started.
func Init(opts Options) {
	if opts.Writer == nil {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(opts.Writer, hopts))
	} else {
		L = slog.New(slog.NewTextHandler(opts.Writer, hopts))
	}
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
