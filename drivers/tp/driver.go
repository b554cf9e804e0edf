package tp

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/drivers/spi"
	"github.com/clktmr/twl/pxi"
)

// Driver talks to the touch panel of the peer. Unlike the other drivers
// it allows one request per command to be in flight at the same time.
type Driver struct {
	ch   pxi.Channel
	work *pxi.SystemWork
	cfg  Config

	initialized atomic.Bool
	callback    atomic.Pointer[Callback]

	busy periph.Flags // Requests in flight
	errs periph.Flags // Requests that failed

	mu        sync.Mutex
	state     State
	buf       Sample
	bufs      []Sample
	index     int
	frequency int
	cal       calibration
}

// New returns a driver that sends requests on ch and reads samples from
// work. It must be initialized with Init before use.
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
	if d.initialized.Load() {
		return nil
	}
	if err := periph.WaitReady(ctx, d.ch, pxi.TagTouchPanel, d.cfg.ReadyTimeout); err != nil {
		return err
	}
	if !d.initialized.CompareAndSwap(false, true) {
		return nil
	}
	d.busy.Reset()
	d.errs.Reset()
	d.ch.SetHandler(pxi.TagTouchPanel, d.handle)
	return nil
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetCallback sets the function called for replies. nil removes it.
func (d *Driver) SetCallback(cb Callback) {
	if cb == nil {
		d.callback.Store(nil)
		return
	}
	d.callback.Store(&cb)
}

func (d *Driver) notify(ctx context.Context, cmd Command, r Result, index int) {
	if cb := d.callback.Load(); cb != nil {
		(*cb)(ctx, cmd, r, index)
	}
}

// errorAtPxi marks cmd as failed and reports PxiBusy.
func (d *Driver) errorAtPxi(ctx context.Context, cmd Command) {
	d.errs.Set(uint32(cmd.Flag()))
	d.notify(ctx, cmd, PxiBusy, 0)
}

// request marks cmd as in flight and sends its words.
func (d *Driver) request(cmd Command, words []uint32) Result {
	if !d.initialized.Load() {
		debug.Warn("tp: library is not initialized yet")
		return IllegalStatus
	}
	flag := uint32(cmd.Flag())
	if !d.busy.TrySet(flag) {
		debug.Warn("tp: request already in progress", "cmd", cmd)
		return Exclusive
	}
	d.errs.Clear(flag)
	for _, w := range words {
		if err := d.ch.Send(pxi.TagTouchPanel, w); err != nil {
			debug.Warn("tp: failed to send command", "cmd", cmd, "err", err)
			d.busy.Clear(flag)
			d.errorAtPxi(context.Background(), cmd)
			return PxiBusy
		}
	}
	return Success
}

// RequestSamplingAsync requests a single sample. The result is read with
// WaitRawResult or WaitCalibratedResult. Not available during auto sampling.
func (d *Driver) RequestSamplingAsync() Result {
	if d.State() != StateReady {
		return IllegalStatus
	}
	return d.request(CmdSampling, spi.Packet(uint8(CmdSampling), 0))
}

// RequestAutoSamplingStartAsync starts sampling frequency times per frame,
// starting at line vcount. Samples are stored into bufs, which is used as a
// ring. bufs must not be accessed while auto sampling runs.
func (d *Driver) RequestAutoSamplingStartAsync(vcount uint16, frequency int, bufs []Sample) Result {
	if vcount >= LCDLines || frequency < 1 || frequency > MaxFrequency || len(bufs) == 0 {
		debug.Warn("tp: invalid parameter", "vcount", vcount, "frequency", frequency, "bufs", len(bufs))
		return InvalidParameter
	}

	d.mu.Lock()
	if d.state != StateReady {
		d.mu.Unlock()
		return IllegalStatus
	}
	d.bufs = bufs
	d.index = 0
	d.frequency = frequency
	for i := range bufs {
		bufs[i].Touch = false
	}
	d.mu.Unlock()

	return d.request(CmdAutoOn, spi.Packet(uint8(CmdAutoOn), uint8(frequency), vcount))
}

func (d *Driver) RequestAutoSamplingStopAsync() Result {
	if d.State() != StateAutoSampling {
		return IllegalStatus
	}
	return d.request(CmdAutoOff, spi.Packet(uint8(CmdAutoOff), 0))
}

// RequestSetStabilityAsync sets the range within which consecutive
// measurements must agree for a coordinate to be valid. retry is ignored by
// the peer.
func (d *Driver) RequestSetStabilityAsync(retry uint8, rng uint16) Result {
	if rng == 0 || rng >= 255 {
		debug.Warn("tp: invalid parameter", "range", rng)
		return InvalidParameter
	}
	return d.request(CmdSetStability, spi.Packet(uint8(CmdSetStability), uint8(rng)))
}

// WaitBusy waits until none of the requests in flags is in flight.
func (d *Driver) WaitBusy(ctx context.Context, flags CommandFlag) error {
	if pxi.IsInterrupt(ctx) {
		return periph.ErrInterruptContext
	}
	return d.busy.Wait(ctx, uint32(flags), d.cfg.BusyTimeout)
}

func (d *Driver) WaitAllBusy(ctx context.Context) error { return d.WaitBusy(ctx, FlagAll) }

// CheckBusy returns the requests in flags that are in flight.
func (d *Driver) CheckBusy(flags CommandFlag) CommandFlag {
	return CommandFlag(d.busy.Test(uint32(flags)))
}

// CheckError returns the requests in flags whose last attempt failed.
func (d *Driver) CheckError(flags CommandFlag) CommandFlag {
	return CommandFlag(d.errs.Test(uint32(flags)))
}

// WaitRawResult waits for the sample requested by RequestSamplingAsync.
func (d *Driver) WaitRawResult(ctx context.Context) (Sample, error) {
	if err := d.WaitBusy(ctx, FlagSampling); err != nil {
		return Sample{}, err
	}
	if d.CheckError(FlagSampling) != 0 {
		return Sample{}, ErrRequest
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf, nil
}

// GetCalibratedResult returns the last requested sample in screen
// coordinates without waiting.
func (d *Driver) GetCalibratedResult() (Sample, error) {
	if d.CheckError(FlagSampling) != 0 {
		return Sample{}, ErrRequest
	}
	d.mu.Lock()
	buf := d.buf
	d.mu.Unlock()
	return d.CalibratedPoint(buf), nil
}

func (d *Driver) WaitCalibratedResult(ctx context.Context) (Sample, error) {
	if err := d.WaitBusy(ctx, FlagSampling); err != nil {
		return Sample{}, err
	}
	return d.GetCalibratedResult()
}

// LatestRawPointInAuto returns the latest sample of auto sampling. A
// coordinate that is invalid in the latest sample is taken from the
// preceding samples of the same frame, if one of them is valid.
func (d *Driver) LatestRawPointInAuto() Sample {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := Sample{Validity: InvalidXY}
	n := len(d.bufs)
	if d.frequency == 1 || n <= 1 {
		return res
	}
	for i := 0; i < d.frequency && i < n-1; i++ {
		s := d.bufs[(d.index-i+n)%n]
		if !s.Touch {
			return res
		}
		if res.Validity&InvalidX != 0 && s.Validity&InvalidX == 0 {
			res.X = s.X
			if i != 0 {
				res.Validity &^= InvalidX
			}
		}
		if res.Validity&InvalidY != 0 && s.Validity&InvalidY == 0 {
			res.Y = s.Y
			if i != 0 {
				res.Validity &^= InvalidY
			}
		}
		if res.Validity == Valid {
			break
		}
	}
	res.Touch = true
	return res
}

func (d *Driver) LatestCalibratedPointInAuto() Sample {
	return d.CalibratedPoint(d.LatestRawPointInAuto())
}

// LatestIndexInAuto returns the ring position of the latest sample.
func (d *Driver) LatestIndexInAuto() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index
}

func (d *Driver) systemSample() Sample {
	x, y, touch, validity := pxi.UnpackTouch(d.work.TouchPanel.Load())
	return Sample{X: x, Y: y, Touch: touch, Validity: Validity(validity)}
}

// handle processes replies and notifications of the peer. It runs in the
// receive path of the link.
func (d *Driver) handle(ctx context.Context, tag pxi.Tag, data uint32, perr bool) {
	c, res, end := spi.ParseReply(data)
	cmd := Command(c)
	if perr {
		debug.Error("tp: damaged reply", "data", data)
		d.errorAtPxi(ctx, cmd)
		return
	}

	if cmd == CmdAutoSampling {
		d.mu.Lock()
		if len(d.bufs) == 0 {
			d.mu.Unlock()
			debug.Warn("tp: sample without auto sampling")
			return
		}
		d.index++
		if d.index >= len(d.bufs) {
			d.index = 0
		}
		d.bufs[d.index] = d.systemSample()
		index := d.index
		d.mu.Unlock()
		d.notify(ctx, cmd, Success, index)
		return
	}
	if !end {
		return
	}

	flag := uint32(cmd.Flag())
	if cmd > CmdSetStability {
		debug.Error("tp: reply for unknown command", "cmd", cmd, "result", res)
		return
	}
	if d.busy.Test(flag) == 0 {
		debug.Error("tp: reply without request", "cmd", cmd, "result", res)
		d.fail(ctx, cmd, FatalError)
		return
	}

	var r Result
	switch res {
	case spi.Success:
		d.mu.Lock()
		switch cmd {
		case CmdSampling:
			d.buf = d.systemSample()
			d.state = StateReady
		case CmdAutoOn:
			d.state = StateAutoSampling
		case CmdAutoOff:
			d.state = StateReady
		}
		d.mu.Unlock()
		d.busy.Clear(flag)
		d.notify(ctx, cmd, Success, 0)
		return
	case spi.Exclusive:
		r = Exclusive
	case spi.InvalidParameter:
		r = InvalidParameter
	case spi.IllegalStatus:
		r = IllegalStatus
	default:
		debug.Error("tp: illegal result from peer", "cmd", cmd, "result", res)
		r = FatalError
	}
	d.fail(ctx, cmd, r)
}

// fail marks cmd as failed and no longer in flight and reports r.
func (d *Driver) fail(ctx context.Context, cmd Command, r Result) {
	d.errs.Set(uint32(cmd.Flag()))
	d.busy.Clear(uint32(cmd.Flag()))
	d.notify(ctx, cmd, r, 0)
}
