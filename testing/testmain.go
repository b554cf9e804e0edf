// Package testing provides utilities for writing tests against the simulated
// processor link.
package testing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/pxi"
)

// TestMain should be used as TestMain for tests that talk to the link. It
// enables driver logging to stderr if TWL_LOG is set to a level name, e.g.
// TWL_LOG=debug.
func TestMain(m *testing.M) {
	if lvl, ok := os.LookupEnv("TWL_LOG"); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(lvl))); err != nil {
			level = slog.LevelDebug
		}
		debug.Init(debug.Options{Writer: os.Stderr, Level: level})
	}

	os.Exit(m.Run())
}

// StartLink returns a running link which is stopped when the test finishes.
func StartLink(t testing.TB) *pxi.Link {
	t.Helper()

	link := pxi.NewLink(pxi.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	t.Cleanup(func() {
		link.Close()
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("link: %v", err)
		}
	})
	return link
}
