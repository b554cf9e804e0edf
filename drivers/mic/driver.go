package mic

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/drivers/spi"
	"github.com/clktmr/twl/pxi"
)

// Driver talks to the microphone of the peer.
type Driver struct {
	ch   pxi.Channel
	work *pxi.SystemWork
	cfg  Config

	m    periph.Machine[Result]
	full atomic.Pointer[Callback]
}

// New returns a driver that sends requests on ch. Single samples are read
// from work. It must be initialized with Init before use.
func New(ch pxi.Channel, work *pxi.SystemWork, opts ...Option) *Driver {
	d := &Driver{ch: ch, work: work, cfg: DefaultConfig}
	for _, opt := range opts {
		opt(&d.cfg)
	}
	return d
}

// Init waits for the peer and installs the reply handler. Calling it again
// has no effect.
func (d *Driver) Init(ctx context.Context) error {
	if !d.m.Begin() {
		return nil
	}
	if err := periph.WaitReady(ctx, d.ch, pxi.TagMic, d.cfg.ReadyTimeout); err != nil {
		d.m.Enter(periph.BeforeInit)
		return err
	}
	d.work.MicLastAddress.Store(0)
	d.ch.SetHandler(pxi.TagMic, d.handle)
	d.m.Ready()
	return nil
}

func (d *Driver) State() periph.State { return d.m.State() }

func (d *Driver) lock() Result {
	err := d.m.Lock()
	switch {
	case err == nil:
		return Success
	case errors.Is(err, periph.ErrBeforeInit):
		debug.Warn("mic: library is not initialized yet")
		return IllegalStatus
	}
	return Busy
}

// send locks the driver and sends the words of a packet.
func (d *Driver) send(req periph.Request[Result], words []uint32) Result {
	if r := d.lock(); r != Success {
		return r
	}
	d.m.Arm(req)
	err := d.m.Send(func() error {
		for _, w := range words {
			if err := d.ch.Send(pxi.TagMic, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		debug.Warn("mic: failed to send command", "cmd", Command(req.Command), "err", err)
		return SendError
	}
	return Success
}

func (d *Driver) await(ctx context.Context, issue func(cb Callback) Result) Result {
	return periph.Await(ctx, Success, IllegalStatus, func(cb func(context.Context, Result)) Result {
		return issue(cb)
	})
}

// DoSamplingAsync takes a single sample and stores it in dest. Only the
// types with filter are supported.
func (d *Driver) DoSamplingAsync(typ SamplingType, dest *uint16, cb Callback) Result {
	if typ > Signed12 {
		debug.Warn("mic: illegal sampling type", "type", typ)
		return IllegalParameter
	}
	flags, _ := typ.flags()
	req := periph.Request[Result]{Callback: cb, Command: uint8(CmdSampling)}
	if dest != nil {
		req.Dest = func(v uint32) { *dest = uint16(v) }
	}
	return d.send(req, spi.Packet(uint8(CmdSampling), flags))
}

func (d *Driver) DoSampling(ctx context.Context, typ SamplingType) (sample uint16, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.DoSamplingAsync(typ, &sample, cb) })
	return sample, r
}

// StartAutoSamplingAsync starts sampling into the buffer described by p.
func (d *Driver) StartAutoSamplingAsync(p AutoParam, cb Callback) Result {
	if p.Rate < d.cfg.SamplingRateLimit {
		debug.Warn("mic: sampling rate too high", "rate", p.Rate)
		return IllegalParameter
	}
	return d.start(CmdAutoOn, p, cb)
}

// start validates p and sends the start packet cmd for it.
func (d *Driver) start(cmd Command, p AutoParam, cb Callback) Result {
	switch {
	case p.Buffer&0x1f != 0:
		debug.Warn("mic: buffer must be 32-byte aligned", "buffer", p.Buffer)
		return IllegalParameter
	case p.Size&0x1f != 0:
		debug.Warn("mic: size must be a multiple of 32 bytes", "size", p.Size)
		return IllegalParameter
	case p.Size == 0:
		return IllegalParameter
	}
	flags, ok := p.Type.flags()
	if !ok {
		debug.Warn("mic: illegal sampling type", "type", p.Type)
		return IllegalParameter
	}
	if p.Loop {
		flags |= FlagLoop
	}

	if p.Full == nil {
		d.full.Store(nil)
	} else {
		d.full.Store(&p.Full)
	}
	bufHi, bufLo := spi.Split(p.Buffer)
	sizeHi, sizeLo := spi.Split(p.Size)
	rateHi, rateLo := spi.Split(p.Rate)
	words := spi.Packet(uint8(cmd), flags, bufHi, bufLo, sizeHi, sizeLo, rateHi, rateLo)
	return d.send(periph.Request[Result]{Callback: cb, Command: uint8(cmd)}, words)
}

func (d *Driver) StartAutoSampling(ctx context.Context, p AutoParam) Result {
	return d.await(ctx, func(cb Callback) Result { return d.StartAutoSamplingAsync(p, cb) })
}

func (d *Driver) StopAutoSamplingAsync(cb Callback) Result {
	words := spi.Packet(uint8(CmdAutoOff), 0)
	return d.send(periph.Request[Result]{Callback: cb, Command: uint8(CmdAutoOff)}, words)
}

func (d *Driver) StopAutoSampling(ctx context.Context) Result {
	return d.await(ctx, func(cb Callback) Result { return d.StopAutoSamplingAsync(cb) })
}

// AdjustAutoSamplingAsync changes the interval of a running auto sampling.
func (d *Driver) AdjustAutoSamplingAsync(rate uint32, cb Callback) Result {
	if rate < d.cfg.SamplingRateLimit {
		debug.Warn("mic: sampling rate too high", "rate", rate)
		return IllegalParameter
	}
	hi, lo := spi.Split(rate)
	words := spi.Packet(uint8(CmdAutoAdjust), 0, hi, lo)
	return d.send(periph.Request[Result]{Callback: cb, Command: uint8(CmdAutoAdjust)}, words)
}

func (d *Driver) AdjustAutoSampling(ctx context.Context, rate uint32) Result {
	return d.await(ctx, func(cb Callback) Result { return d.AdjustAutoSamplingAsync(rate, cb) })
}

// LastSamplingAddress returns the address of the latest sample written by
// auto sampling, or 0 if there is none yet.
func (d *Driver) LastSamplingAddress() uint32 { return d.work.MicLastAddress.Load() }

func resultOf(r spi.Result) Result {
	switch r {
	case spi.Success:
		return Success
	case spi.InvalidCommand:
		return InvalidCommand
	case spi.InvalidParameter:
		return IllegalParameter
	case spi.IllegalStatus:
		return IllegalStatus
	case spi.Exclusive:
		return Busy
	}
	return FatalError
}

// handle processes replies of the peer. It runs in the receive path of the
// link.
func (d *Driver) handle(ctx context.Context, tag pxi.Tag, data uint32, perr bool) {
	if perr {
		debug.Error("mic: damaged reply", "data", data)
		d.m.Finish(ctx, FatalError, nil)
		return
	}

	c, res, _ := spi.ParseReply(data)
	cmd, r := Command(c), resultOf(res)
	if cmd == CmdBufferFull {
		if full := d.full.Load(); full != nil {
			(*full)(ctx, r)
		}
		return
	}
	if !d.m.Expects(uint8(cmd)) {
		debug.Error("mic: unexpected reply", "cmd", cmd, "state", d.m.State())
		d.m.Finish(ctx, FatalError, nil)
		return
	}
	if cmd == CmdSampling && r == Success {
		if req := d.m.Pending(); req.Dest != nil {
			req.Dest(d.work.MicSample.Load())
		}
	}
	d.m.Finish(ctx, r, nil)
}
