package sndex

import (
	"context"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/periph"
	"github.com/clktmr/twl/pxi"
)

// handle processes replies and notifications of the peer. It runs in the
// receive path of the link.
func (d *Driver) handle(ctx context.Context, tag pxi.Tag, data uint32, perr bool) {
	cmd, result, param := Unpack(data)

	// The volume switch notification isn't a reply, it takes the machine on
	// its own and is dropped if a request is in flight.
	if cmd == CmdPressVolSwitch {
		if err := d.m.Lock(); err != nil {
			return
		}
		d.m.Arm(periph.Request[Result]{Command: uint8(cmd)})
	}

	if tag != pxi.TagSndex || perr || !d.m.Expects(uint8(cmd)) {
		debug.Error("sndex: library state is inconsistent",
			"tag", tag, "cmd", cmd, "err", perr, "state", d.m.State())
		d.reply(ctx, FatalError)
		return
	}

	switch result {
	case PxiSuccess:
		req := d.m.Pending()
		switch cmd {
		case CmdGetMute, CmdGetFrequency, CmdGetDSPMixRate, CmdGetVolume,
			CmdGetDevice, CmdHPConnect:
			if req.Dest != nil {
				req.Dest(uint32(param))
			}
		case CmdPressVolSwitch:
			if cb := d.volSwitch.Load(); cb != nil {
				(*cb)(ctx, Success)
			}
		}
		d.reply(ctx, Success)
	case PxiInvalidParam:
		d.reply(ctx, InvalidParam)
	case PxiExclusive:
		d.reply(ctx, Exclusive)
	case PxiIllegalState:
		d.reply(ctx, IllegalState)
	case PxiDeviceError:
		if req := d.m.Pending(); cmd == CmdGetVolume && req.Dest != nil {
			req.Dest(VolumeMin)
		}
		d.reply(ctx, DeviceError)
	default:
		d.reply(ctx, FatalError)
	}
}

// reply completes the pending request with r.
func (d *Driver) reply(ctx context.Context, r Result) {
	d.m.Finish(ctx, r, func(cmd uint8) periph.State {
		switch Command(cmd) {
		case CmdSetIir:
			d.flags.Clear(flagLockSpi | flagIirSetting)
		case CmdPreProcShutter:
			return periph.BusyPhase1
		}
		return periph.Initialized
	})
}
