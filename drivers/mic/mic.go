// Package mic drives the microphone behind the peer processor. It takes
// single samples and runs auto sampling into a buffer in shared memory.
package mic

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of a request.
type Result uint8

const (
	Success Result = iota
	Busy
	IllegalParameter
	SendError
	InvalidCommand
	IllegalStatus
	FatalError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Busy:
		return "busy"
	case IllegalParameter:
		return "illegal-parameter"
	case SendError:
		return "send-error"
	case InvalidCommand:
		return "invalid-command"
	case IllegalStatus:
		return "illegal-status"
	case FatalError:
		return "fatal-error"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

func (r Result) Error() string { return "mic: " + r.String() }

// Err returns r as an error, or nil for Success.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}

type Callback func(ctx context.Context, r Result)

type SamplingType uint8

const (
	Bit8 SamplingType = iota
	Bit12
	Signed8
	Signed12
	Bit12FilterOff
	Signed12FilterOff
)

func (t SamplingType) String() string {
	switch t {
	case Bit8:
		return "8bit"
	case Bit12:
		return "12bit"
	case Signed8:
		return "s8bit"
	case Signed12:
		return "s12bit"
	case Bit12FilterOff:
		return "12bit-filter-off"
	case Signed12FilterOff:
		return "s12bit-filter-off"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Sampling rates are given as intervals in cycles of the peer's clock.
const (
	ClockARM7 = 33513982

	Rate8K  = ClockARM7 / 8000
	Rate11K = ClockARM7 / 11025
	Rate16K = ClockARM7 / 16000
	Rate22K = ClockARM7 / 22050
	Rate32K = ClockARM7 / 32000

	// RateLimit is the shortest interval accepted by auto sampling.
	RateLimit = 1024
)

// Rates of limited sampling. The codec samples at 32.73 or 47.61 kHz and
// limited sampling keeps every n-th sample.
const (
	Rate32730 = ClockARM7 / 32730
	Rate16360 = ClockARM7 / 16360
	Rate10910 = ClockARM7 / 10910
	Rate8180  = ClockARM7 / 8180
	Rate47610 = ClockARM7 / 47610
	Rate23810 = ClockARM7 / 23810
	Rate15870 = ClockARM7 / 15870
	Rate11900 = ClockARM7 / 11900
)

// LimitedRate reports whether rate is accepted by limited sampling.
func LimitedRate(rate uint32) bool {
	switch rate {
	case Rate32730, Rate16360, Rate10910, Rate8180,
		Rate47610, Rate23810, Rate15870, Rate11900:
		return true
	}
	return false
}

// AutoParam configures auto sampling and limited sampling.
type AutoParam struct {
	Type   SamplingType
	Buffer uint32   // Address in shared memory, 32 byte aligned
	Size   uint32   // Buffer size in bytes, a multiple of 32
	Rate   uint32   // Sampling interval, at least RateLimit or a limited rate
	Loop   bool     // Restart at the beginning when the buffer is full
	Full   Callback // Called when the buffer is full and Loop isn't set
}

type Config struct {
	SamplingRateLimit uint32
	ReadyTimeout      time.Duration
}

var DefaultConfig = Config{
	SamplingRateLimit: RateLimit,
	ReadyTimeout:      time.Second,
}

type Option func(*Config)

func WithSamplingRateLimit(limit uint32) Option {
	return func(c *Config) { c.SamplingRateLimit = limit }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadyTimeout = d }
}
