// Package sndex controls the extended sound features of the peer processor:
// mute, I2S frequency, DSP mix rate, volume, output device, IIR filters and the
// shutter sound sequence.
//
// Every operation exists in an asynchronous form, which returns as soon as the
// request was sent and reports the outcome to a callback, and in a synchronous
// form, which blocks until the reply arrived. Only one request can be in
// flight at a time; concurrent requests fail with Exclusive.
package sndex

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of an operation.
type Result uint8

const (
	Success Result = iota
	BeforeInit
	InvalidParam
	Exclusive
	IllegalState
	PxiSendError
	DeviceError
	FatalError
	IllegalTarget
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case BeforeInit:
		return "before init"
	case InvalidParam:
		return "invalid parameter"
	case Exclusive:
		return "exclusive"
	case IllegalState:
		return "illegal state"
	case PxiSendError:
		return "pxi send error"
	case DeviceError:
		return "device error"
	case FatalError:
		return "fatal error"
	case IllegalTarget:
		return "illegal target"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

func (r Result) Error() string { return "sndex: " + r.String() }

// Err returns r as an error, or nil if r is Success.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}

// Callback receives the outcome of an asynchronous operation. It is called
// from the link's receive path and must not block or call synchronous
// operations.
type Callback func(ctx context.Context, r Result)

type Mute uint8

const (
	MuteOff Mute = iota
	MuteOn
)

type Frequency uint8

const (
	Freq32730 Frequency = iota
	Freq47610
)

type Device uint8

const (
	DeviceAuto Device = iota
	DeviceSpeaker
	DeviceHeadphone
	DeviceBoth
)

type Headphone uint8

const (
	HeadphoneUnconnected Headphone = iota
	HeadphoneConnected
)

// IirTarget selects the filter a parameter set is written to.
type IirTarget uint16

const (
	IirADC1 IirTarget = iota
	IirADC2
	IirADC3
	IirADC4
	IirADC5

	// Targets from here on are reserved.
	IirTargetMax
)

// IirFilterParam holds the coefficients of a biquad filter.
type IirFilterParam struct {
	N0, N1, N2 uint16
	D1, D2     uint16
}

const (
	DSPMixRateMin = 0
	DSPMixRateMax = 8

	VolumeMin   = 0
	VolumeMax   = 7  // Maximum of the 8-level volume
	VolumeMaxEx = 31 // Maximum of the 32-level volume
)

// Config configures a Driver.
type Config struct {
	CodecTWL     bool          // Codec runs in TWL mode
	RunOnTWL     bool          // Platform supports the 32-level volume
	ReadyTimeout time.Duration // Bound for waiting on the peer in Init
	StepInterval time.Duration // Pause after each step of a sequence
	StepTimeout  time.Duration // Bound for waiting on one step of a sequence
	ResetRetries int           // Attempts to restore a temporary volume
}

// DefaultConfig is used for all settings not changed by an Option.
var DefaultConfig = Config{
	CodecTWL:     true,
	RunOnTWL:     true,
	ReadyTimeout: time.Second,
	StepInterval: time.Millisecond,
	StepTimeout:  time.Second,
	ResetRetries: 5,
}

type Option func(*Config)

func WithCodecTWL(on bool) Option { return func(c *Config) { c.CodecTWL = on } }
func WithRunOnTWL(on bool) Option { return func(c *Config) { c.RunOnTWL = on } }

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadyTimeout = d }
}

// WithSteps sets the pause and the timeout for each step of a sequence.
func WithSteps(interval, timeout time.Duration) Option {
	return func(c *Config) { c.StepInterval, c.StepTimeout = interval, timeout }
}

func WithResetRetries(n int) Option { return func(c *Config) { c.ResetRetries = n } }
