// Package tp drives the touch panel behind the peer processor. Samples are
// requested one at a time or delivered continuously into a ring of buffers
// by auto sampling. Raw samples can be converted to screen coordinates with
// a calibration computed from two reference points.
package tp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrRequest     = errors.New("tp: request failed")
	ErrCalibration = errors.New("tp: invalid calibration points")
)

// Result is the outcome of a request, as reported to the callback.
type Result uint8

const (
	Success Result = iota
	InvalidParameter
	IllegalStatus
	Exclusive
	PxiBusy
	FatalError // Reply that matches no request or carries an unknown result
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidParameter:
		return "invalid-parameter"
	case IllegalStatus:
		return "illegal-status"
	case Exclusive:
		return "exclusive"
	case PxiBusy:
		return "pxi-busy"
	case FatalError:
		return "fatal-error"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

func (r Result) Error() string { return "tp: " + r.String() }

// Err returns r as an error, or nil for Success.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}

// Command identifies a request on the touch panel tag.
type Command uint8

const (
	CmdSampling Command = iota
	CmdAutoOn
	CmdAutoOff
	CmdSetStability

	// CmdAutoSampling is sent by the peer for every sample taken by auto
	// sampling.
	CmdAutoSampling Command = 0x10
)

func (c Command) String() string {
	switch c {
	case CmdSampling:
		return "sampling"
	case CmdAutoOn:
		return "auto-on"
	case CmdAutoOff:
		return "auto-off"
	case CmdSetStability:
		return "set-stability"
	case CmdAutoSampling:
		return "auto-sampling"
	}
	return fmt.Sprintf("cmd(0x%02x)", uint8(c))
}

// Flag returns the bit of c in a CommandFlag mask.
func (c Command) Flag() CommandFlag { return 1 << c }

// CommandFlag is a set of requests.
type CommandFlag uint32

const (
	FlagSampling     = CommandFlag(1 << CmdSampling)
	FlagAutoOn       = CommandFlag(1 << CmdAutoOn)
	FlagAutoOff      = CommandFlag(1 << CmdAutoOff)
	FlagSetStability = CommandFlag(1 << CmdSetStability)

	FlagAll = FlagSampling | FlagAutoOn | FlagAutoOff | FlagSetStability
)

type State uint8

const (
	StateReady State = iota
	StateAutoSampling
)

func (s State) String() string {
	if s == StateAutoSampling {
		return "auto-sampling"
	}
	return "ready"
}

// Validity marks the coordinates of a sample that didn't settle.
type Validity uint8

const (
	Valid     Validity = 0
	InvalidX  Validity = 1 << 0
	InvalidY  Validity = 1 << 1
	InvalidXY          = InvalidX | InvalidY
)

type Sample struct {
	X, Y     uint16
	Touch    bool
	Validity Validity
}

// Callback is called for every completed request and every sample of auto
// sampling. index is the ring position of the sample for CmdAutoSampling
// and zero otherwise.
type Callback func(ctx context.Context, cmd Command, r Result, index int)

// Limits of auto sampling.
const (
	LCDLines     = 263
	MaxFrequency = 4
)

type Config struct {
	ScreenWidth  uint16
	ScreenHeight uint16
	RawMax       uint16 // Raw coordinates are less than RawMax
	ReadyTimeout time.Duration
	BusyTimeout  time.Duration // Bound for WaitBusy and the Wait*Result calls
}

var DefaultConfig = Config{
	ScreenWidth:  256,
	ScreenHeight: 192,
	RawMax:       0x1000,
	ReadyTimeout: time.Second,
	BusyTimeout:  time.Second,
}

type Option func(*Config)

func WithScreen(width, height uint16) Option {
	return func(c *Config) { c.ScreenWidth, c.ScreenHeight = width, height }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadyTimeout = d }
}

func WithBusyTimeout(d time.Duration) Option {
	return func(c *Config) { c.BusyTimeout = d }
}
