package sndex

import (
	"context"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/pxi"
)

// SetIirFilterAsync writes param to the filter target. The coefficients are
// sent one by one, each step waiting for the peer before the next is sent, so
// the call blocks for several round trips before returning. Only the final
// step reports to cb.
//
// It must not be called from interrupt context.
func (d *Driver) SetIirFilterAsync(ctx context.Context, target IirTarget, param IirFilterParam, cb Callback) Result {
	if target >= IirTargetMax {
		debug.Warn("sndex: invalid IIR target", "target", target)
		return IllegalTarget
	}
	if pxi.IsInterrupt(ctx) {
		debug.Warn("sndex: sequence can't be sent in interrupt context")
		return IllegalState
	}
	if !d.flags.TrySet(flagIirSetting) {
		return Exclusive
	}
	if !d.cfg.CodecTWL {
		debug.Warn("sndex: illegal state", "codec", "nitro")
		d.flags.Clear(flagIirSetting)
		return IllegalState
	}
	if r := d.lock(); r != Success {
		d.flags.Clear(flagIirSetting)
		return r
	}

	steps := []struct {
		cmd Command
		v   uint16
	}{
		{CmdSetIirTarget, uint16(target)},
		{CmdSetIirN0, param.N0},
		{CmdSetIirN1, param.N1},
		{CmdSetIirN2, param.N2},
		{CmdSetIirD1, param.D1},
		{CmdSetIirD2, param.D2},
	}
	for _, step := range steps {
		if r := d.send(step.cmd, step.v, nil, nil); r != Success {
			d.flags.Clear(flagIirSetting)
			return r
		}
		if err := d.m.Relock(ctx, d.cfg.StepInterval, d.cfg.StepTimeout); err != nil {
			debug.Warn("sndex: sequence step not completed", "cmd", step.cmd, "err", err)
			d.flags.Clear(flagIirSetting)
			return PxiSendError
		}
	}

	if r := d.send(CmdSetIir, 0, nil, cb); r != Success {
		d.flags.Clear(flagIirSetting)
		return r
	}
	return Success
}

func (d *Driver) SetIirFilter(ctx context.Context, target IirTarget, param IirFilterParam) Result {
	if pxi.IsInterrupt(ctx) {
		debug.Warn("sndex: synchronous call in interrupt context")
		return IllegalState
	}
	if target >= IirTargetMax {
		debug.Warn("sndex: invalid IIR target", "target", target)
		return IllegalTarget
	}
	r := d.await(ctx, func(cb Callback) Result { return d.SetIirFilterAsync(ctx, target, param, cb) })
	if r != Exclusive {
		d.flags.Clear(flagLockSpi | flagIirSetting)
	}
	return r
}

// PreProcessForShutterSound prepares the hardware for the shutter sound. On
// success the driver stays busy until PostProcessForShutterSoundAsync was
// called. Calling it again before that repeats the preparation.
func (d *Driver) PreProcessForShutterSound(ctx context.Context) Result {
	if !d.cfg.CodecTWL {
		return IllegalState
	}
	return d.await(ctx, func(cb Callback) Result {
		if err := d.m.Acquire(periph.BusyPhase1); err != nil {
			return lockResult(err)
		}
		return d.send(CmdPreProcShutter, 0, nil, cb)
	})
}

// PostProcessForShutterSoundAsync ends the shutter sound sequence started by
// PreProcessForShutterSound.
func (d *Driver) PostProcessForShutterSoundAsync(cb Callback) Result {
	if !d.cfg.CodecTWL || !d.m.Swap(periph.BusyPhase1, periph.BusyPhase2) {
		return IllegalState
	}
	return d.send(CmdPostProcShutter, 0, nil, cb)
}

func (d *Driver) PostProcessForShutterSound(ctx context.Context) Result {
	return d.await(ctx, func(cb Callback) Result { return d.PostProcessForShutterSoundAsync(cb) })
}

// SetIgnoreHWVolume sets a volume regardless of the volume chosen by the
// user, for example for an alarm. The volume before the first call is saved
// and restored by ResetIgnoreHWVolume or SleepAndExit.
func (d *Driver) SetIgnoreHWVolume(ctx context.Context, volume uint8, eightlv bool) Result {
	if d.flags.Test(flagStoreVolume) == 0 {
		v, r := d.GetVolumeEx(ctx)
		if r != Success {
			return r
		}
		d.storedVolume.Store(uint32(v))
	}

	var r Result
	if eightlv {
		r = d.SetVolume(ctx, volume, true)
	} else {
		r = d.SetVolumeEx(ctx, volume)
	}
	if r != Success {
		return r
	}
	d.flags.Set(flagStoreVolume)
	return Success
}

// ResetIgnoreHWVolume restores the volume saved by SetIgnoreHWVolume.
func (d *Driver) ResetIgnoreHWVolume(ctx context.Context) Result {
	if r := d.SetVolumeEx(ctx, uint8(d.storedVolume.Load())); r != Success {
		return r
	}
	d.flags.Clear(flagStoreVolume)
	return Success
}

// SleepAndExit must be called before the system sleeps or shuts down. It
// waits for a running IIR sequence and restores a temporary volume. If the
// volume can't be restored after the configured retries, the temporary volume
// is kept.
func (d *Driver) SleepAndExit(ctx context.Context) error {
	if err := d.flags.Wait(ctx, flagLockSpi, d.cfg.StepTimeout); err != nil {
		debug.Warn("sndex: IIR filter still being written", "err", err)
	}
	if d.flags.Test(flagStoreVolume) == 0 {
		return nil
	}

	volume := uint8(d.storedVolume.Load())
	d.resetTries.Store(0)
	for i := 0; d.SetVolumeExAsync(volume, d.restoredVolume) != Success; i++ {
		if i >= d.cfg.ResetRetries {
			debug.Warn("sndex: keeping temporary volume", "retries", i)
			d.flags.Clear(flagStoreVolume)
			return nil
		}
		if err := d.m.Wait(ctx, func(s periph.State) bool { return s == periph.Initialized }, d.cfg.StepTimeout); err != nil {
			debug.Warn("sndex: driver busy", "err", err)
		}
	}

	if err := d.flags.Wait(ctx, flagStoreVolume, d.cfg.StepTimeout); err != nil {
		debug.Warn("sndex: volume not restored", "err", err)
		d.flags.Clear(flagStoreVolume)
		return err
	}
	return nil
}

func (d *Driver) restoredVolume(ctx context.Context, r Result) {
	if r != Success && int(d.resetTries.Add(1)) <= d.cfg.ResetRetries {
		if d.SetVolumeExAsync(uint8(d.storedVolume.Load()), d.restoredVolume) == Success {
			return
		}
	}
	if r != Success {
		debug.Warn("sndex: keeping temporary volume", "result", r)
	}
	d.flags.Clear(flagStoreVolume)
}
