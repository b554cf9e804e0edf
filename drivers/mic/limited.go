package mic

import (
	"context"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/drivers/spi"
)

// StartLimitedSamplingAsync starts sampling into the buffer described by p
// at one of the codec rates, see LimitedRate. Sample correction is always
// off. A peer without the TWL codec replies InvalidCommand.
func (d *Driver) StartLimitedSamplingAsync(p AutoParam, cb Callback) Result {
	if !LimitedRate(p.Rate) {
		debug.Warn("mic: illegal limited sampling rate", "rate", p.Rate)
		return IllegalParameter
	}
	return d.start(CmdLimitedOn, p, cb)
}

func (d *Driver) StartLimitedSampling(ctx context.Context, p AutoParam) Result {
	return d.await(ctx, func(cb Callback) Result { return d.StartLimitedSamplingAsync(p, cb) })
}

func (d *Driver) StopLimitedSamplingAsync(cb Callback) Result {
	words := spi.Packet(uint8(CmdLimitedOff), 0)
	return d.send(periph.Request[Result]{Callback: cb, Command: uint8(CmdLimitedOff)}, words)
}

func (d *Driver) StopLimitedSampling(ctx context.Context) Result {
	return d.await(ctx, func(cb Callback) Result { return d.StopLimitedSamplingAsync(cb) })
}

// AdjustLimitedSamplingAsync switches a running limited sampling to another
// codec rate.
func (d *Driver) AdjustLimitedSamplingAsync(rate uint32, cb Callback) Result {
	if !LimitedRate(rate) {
		debug.Warn("mic: illegal limited sampling rate", "rate", rate)
		return IllegalParameter
	}
	hi, lo := spi.Split(rate)
	words := spi.Packet(uint8(CmdLimitedAdjust), 0, hi, lo)
	return d.send(periph.Request[Result]{Callback: cb, Command: uint8(CmdLimitedAdjust)}, words)
}

func (d *Driver) AdjustLimitedSampling(ctx context.Context, rate uint32) Result {
	return d.await(ctx, func(cb Callback) Result { return d.AdjustLimitedSamplingAsync(rate, cb) })
}
