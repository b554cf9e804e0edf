//go:build debug

package debug

import (
	"log/slog"
	"os"
)

const Enabled = true

func init() {
	L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func Assert(ok bool, msg string, args ...any) {
	if !ok {
		L.Error(msg, args...)
		panic(msg)
	}
}
