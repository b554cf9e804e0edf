package sndex

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/pxi"
)

const (
	flagLockSpi     = 1 << iota // IIR filter is being written by the peer
	flagIirSetting              // IIR sequence in progress
	flagStoreVolume             // Temporary volume set, original saved
)

// Driver talks to the sound processor of the peer.
type Driver struct {
	ch  pxi.Channel
	cfg Config

	m     periph.Machine[Result]
	flags periph.Flags

	volSwitch    atomic.Pointer[Callback]
	storedVolume atomic.Uint32
	resetTries   atomic.Int32
}

// New returns a driver that sends requests on ch. It must be initialized
// with Init before use.
func New(ch pxi.Channel, opts ...Option) *Driver {
	d := &Driver{ch: ch, cfg: DefaultConfig}
	for _, opt := range opts {
		opt(&d.cfg)
	}
	return d
}

// Init waits for the peer and installs the reply handler. Calling it again
// has no effect.
func (d *Driver) Init(ctx context.Context) error {
	if !d.m.Begin() {
		debug.Warn("sndex: already initialized")
		return nil
	}
	if err := periph.WaitReady(ctx, d.ch, pxi.TagSndex, d.cfg.ReadyTimeout); err != nil {
		d.m.Enter(periph.BeforeInit)
		return err
	}
	d.ch.SetHandler(pxi.TagSndex, d.handle)
	d.m.Ready()
	return nil
}

// State returns the state of the request machine.
func (d *Driver) State() periph.State { return d.m.State() }

func (d *Driver) lock() Result { return lockResult(d.m.Lock()) }

func lockResult(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, periph.ErrBeforeInit):
		debug.Warn("sndex: library is not initialized yet")
		return BeforeInit
	}
	debug.Warn("sndex: another request is in progress")
	return Exclusive
}

// send records the pending request and sends cmd. The machine must be
// acquired.
func (d *Driver) send(cmd Command, param uint16, dest func(uint32), cb Callback) Result {
	d.m.Arm(periph.Request[Result]{Callback: cb, Dest: dest, Command: uint8(cmd)})
	err := d.m.Send(func() error {
		if err := d.ch.Send(pxi.TagSndex, Pack(cmd, PxiSuccess, param)); err != nil {
			return err
		}
		if cmd == CmdSetIir {
			d.flags.Set(flagLockSpi)
		}
		return nil
	})
	if err != nil {
		debug.Warn("sndex: failed to send command", "cmd", cmd, "err", err)
		return PxiSendError
	}
	return Success
}

func (d *Driver) issue(cmd Command, param uint8, dest func(uint32), cb Callback) Result {
	if r := d.lock(); r != Success {
		return r
	}
	return d.send(cmd, uint16(param), dest, cb)
}

func (d *Driver) await(ctx context.Context, issue func(cb Callback) Result) Result {
	return periph.Await(ctx, Success, IllegalState, func(cb func(context.Context, Result)) Result {
		return issue(cb)
	})
}

func into[T ~uint8](p *T) func(uint32) {
	if p == nil {
		return nil
	}
	return func(v uint32) { *p = T(v) }
}

// oneOf stores b if the reply is 1 and a otherwise.
func oneOf[T ~uint8](p *T, a, b T) func(uint32) {
	if p == nil {
		return nil
	}
	return func(v uint32) {
		if v == 1 {
			*p = b
		} else {
			*p = a
		}
	}
}

func (d *Driver) GetMuteAsync(mute *Mute, cb Callback) Result {
	return d.issue(CmdGetMute, 0, oneOf(mute, MuteOff, MuteOn), cb)
}

func (d *Driver) GetMute(ctx context.Context) (mute Mute, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetMuteAsync(&mute, cb) })
	return mute, r
}

func (d *Driver) GetI2SFrequencyAsync(freq *Frequency, cb Callback) Result {
	return d.issue(CmdGetFrequency, 0, oneOf(freq, Freq32730, Freq47610), cb)
}

func (d *Driver) GetI2SFrequency(ctx context.Context) (freq Frequency, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetI2SFrequencyAsync(&freq, cb) })
	return freq, r
}

func (d *Driver) GetDSPMixRateAsync(rate *uint8, cb Callback) Result {
	return d.issue(CmdGetDSPMixRate, 0, into(rate), cb)
}

func (d *Driver) GetDSPMixRate(ctx context.Context) (rate uint8, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetDSPMixRateAsync(&rate, cb) })
	return rate, r
}

// GetVolumeAsync gets the volume in 8 level scale if eightlv is set, otherwise
// in 32 level scale. With keep the volume saved for restore is returned
// instead of the current one.
func (d *Driver) GetVolumeAsync(volume *uint8, eightlv, keep bool, cb Callback) Result {
	var param uint8
	if keep {
		param |= VolumeKeep
	}
	if eightlv {
		param |= VolumeEightLevel
	}
	return d.issue(CmdGetVolume, param, into(volume), cb)
}

func (d *Driver) GetVolume(ctx context.Context, eightlv, keep bool) (volume uint8, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetVolumeAsync(&volume, eightlv, keep, cb) })
	return volume, r
}

func (d *Driver) GetVolumeExAsync(volume *uint8, cb Callback) Result {
	if !d.cfg.RunOnTWL {
		debug.Warn("sndex: illegal state", "platform", "nitro")
		return IllegalState
	}
	return d.GetVolumeAsync(volume, false, true, cb)
}

func (d *Driver) GetVolumeEx(ctx context.Context) (volume uint8, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetVolumeExAsync(&volume, cb) })
	return volume, r
}

func (d *Driver) GetCurrentVolumeExAsync(volume *uint8, cb Callback) Result {
	if !d.cfg.RunOnTWL {
		debug.Warn("sndex: illegal state", "platform", "nitro")
		return IllegalState
	}
	return d.GetVolumeAsync(volume, false, false, cb)
}

func (d *Driver) GetCurrentVolumeEx(ctx context.Context) (volume uint8, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetCurrentVolumeExAsync(&volume, cb) })
	return volume, r
}

func (d *Driver) GetDeviceAsync(device *Device, cb Callback) Result {
	return d.issue(CmdGetDevice, 0, into(device), cb)
}

func (d *Driver) GetDevice(ctx context.Context) (device Device, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.GetDeviceAsync(&device, cb) })
	return device, r
}

func (d *Driver) IsConnectedHeadphoneAsync(hp *Headphone, cb Callback) Result {
	return d.issue(CmdHPConnect, 0, oneOf(hp, HeadphoneUnconnected, HeadphoneConnected), cb)
}

func (d *Driver) IsConnectedHeadphone(ctx context.Context) (hp Headphone, r Result) {
	r = d.await(ctx, func(cb Callback) Result { return d.IsConnectedHeadphoneAsync(&hp, cb) })
	return hp, r
}

func (d *Driver) SetMuteAsync(mute Mute, cb Callback) Result {
	if mute > MuteOn {
		debug.Warn("sndex: invalid parameter", "mute", mute)
		return InvalidParam
	}
	return d.issue(CmdSetMute, uint8(mute), nil, cb)
}

func (d *Driver) SetMute(ctx context.Context, mute Mute) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetMuteAsync(mute, cb) })
}

func (d *Driver) SetI2SFrequencyAsync(freq Frequency, cb Callback) Result {
	if freq > Freq47610 {
		debug.Warn("sndex: invalid parameter", "freq", freq)
		return InvalidParam
	}
	if !d.cfg.CodecTWL {
		debug.Warn("sndex: illegal state", "codec", "nitro")
		return IllegalState
	}
	return d.issue(CmdSetFrequency, uint8(freq), nil, cb)
}

func (d *Driver) SetI2SFrequency(ctx context.Context, freq Frequency) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetI2SFrequencyAsync(freq, cb) })
}

func (d *Driver) SetDSPMixRateAsync(rate uint8, cb Callback) Result {
	if !d.cfg.CodecTWL {
		debug.Warn("sndex: illegal state", "codec", "nitro")
		return IllegalState
	}
	if rate > DSPMixRateMax {
		debug.Warn("sndex: invalid parameter", "rate", rate)
		return InvalidParam
	}
	return d.issue(CmdSetDSPMixRate, rate, nil, cb)
}

func (d *Driver) SetDSPMixRate(ctx context.Context, rate uint8) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetDSPMixRateAsync(rate, cb) })
}

// SetVolumeAsync sets the volume in 8 level scale if eightlv is set,
// otherwise in 32 level scale.
func (d *Driver) SetVolumeAsync(volume uint8, eightlv bool, cb Callback) Result {
	limit := uint8(VolumeMaxEx)
	if eightlv {
		limit = VolumeMax
	}
	if volume > limit {
		debug.Warn("sndex: invalid parameter", "volume", volume)
		return InvalidParam
	}
	param := volume & VolumeValueMask
	if eightlv {
		param |= VolumeEightLevel
	}
	return d.issue(CmdSetVolume, param, nil, cb)
}

func (d *Driver) SetVolume(ctx context.Context, volume uint8, eightlv bool) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetVolumeAsync(volume, eightlv, cb) })
}

func (d *Driver) SetVolumeExAsync(volume uint8, cb Callback) Result {
	if !d.cfg.RunOnTWL {
		debug.Warn("sndex: illegal state", "platform", "nitro")
		return IllegalState
	}
	return d.SetVolumeAsync(volume, false, cb)
}

func (d *Driver) SetVolumeEx(ctx context.Context, volume uint8) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetVolumeExAsync(volume, cb) })
}

func (d *Driver) SetDeviceAsync(device Device, cb Callback) Result {
	if device > DeviceBoth {
		debug.Warn("sndex: invalid parameter", "device", device)
		return InvalidParam
	}
	if !d.cfg.CodecTWL {
		debug.Warn("sndex: illegal state", "codec", "nitro")
		return IllegalState
	}
	return d.issue(CmdSetDevice, uint8(device), nil, cb)
}

func (d *Driver) SetDevice(ctx context.Context, device Device) Result {
	return d.await(ctx, func(cb Callback) Result { return d.SetDeviceAsync(device, cb) })
}

// SetVolumeSwitchCallback sets the function called when the volume switch
// was pressed. nil removes it.
func (d *Driver) SetVolumeSwitchCallback(cb Callback) {
	if cb == nil {
		d.volSwitch.Store(nil)
		return
	}
	d.volSwitch.Store(&cb)
}
