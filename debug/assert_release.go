//go:build !debug

// Package debug holds the logger for driver warnings and assertions which are
// only checked in builds with the debug tag.
//
// Release builds discard log output unless Init is called. Debug builds log
// everything to stderr.
package debug

// Enabled reports whether assertions are checked. Guard expensive checks
// with it, so they are removed from release builds.
const Enabled = false

// Assert logs msg with args and panics if ok is false.
func Assert(ok bool, msg string, args ...any) {}
