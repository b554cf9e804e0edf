package arm7

import (
	"context"
	"slices"
	"sync"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/sndex"
	"github.com/clktmr/twl/pxi"
)

// Sound answers SNDEX requests. The volume is kept in 32 level scale and
// converted for requests in 8 level scale.
type Sound struct {
	ch pxi.Channel

	mu        sync.Mutex
	mute      sndex.Mute
	freq      sndex.Frequency
	dsp       uint8
	volume    uint8
	kept      uint8 // volume to restore after the shutter sound
	device    sndex.Device
	headphone bool
	shutter   bool
	target    sndex.IirTarget
	staged    sndex.IirFilterParam
	filters   [sndex.IirTargetMax]sndex.IirFilterParam

	faults   map[sndex.Command]sndex.PxiResult
	silenced map[sndex.Command]bool
	history  []sndex.Command
}

// NewSound returns a sound processor answering on ch.
func NewSound(ch pxi.Channel) *Sound {
	s := &Sound{
		ch:       ch,
		volume:   15,
		faults:   make(map[sndex.Command]sndex.PxiResult),
		silenced: make(map[sndex.Command]bool),
	}
	ch.SetHandler(pxi.TagSndex, s.handle)
	return s
}

func to8Level(v uint8) uint8   { return (v*sndex.VolumeMax + sndex.VolumeMaxEx/2) / sndex.VolumeMaxEx }
func from8Level(v uint8) uint8 { return v * sndex.VolumeMaxEx / sndex.VolumeMax }

func (s *Sound) handle(ctx context.Context, tag pxi.Tag, data uint32, err bool) {
	if err {
		debug.Warn("arm7: sound: damaged request dropped", "data", data)
		return
	}
	cmd, param := sndex.UnpackRequest(data)

	s.mu.Lock()
	s.history = append(s.history, cmd)
	if s.silenced[cmd] {
		s.mu.Unlock()
		return
	}
	res, val := s.exec(cmd, param)
	if fault, ok := s.faults[cmd]; ok {
		delete(s.faults, cmd)
		res, val = fault, 0
	}
	s.mu.Unlock()

	s.reply(cmd, res, val)
}

func (s *Sound) reply(cmd sndex.Command, res sndex.PxiResult, val uint8) {
	if err := s.ch.Send(pxi.TagSndex, sndex.Pack(cmd, res, uint16(val))); err != nil {
		debug.Warn("arm7: sound: reply not sent", "cmd", cmd, "err", err)
	}
}

func boolVal(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *Sound) exec(cmd sndex.Command, param uint16) (sndex.PxiResult, uint8) {
	const (
		ok      = sndex.PxiSuccess
		invalid = sndex.PxiInvalidParam
	)
	switch cmd {
	case sndex.CmdGetMute:
		return ok, uint8(s.mute)
	case sndex.CmdGetFrequency:
		return ok, uint8(s.freq)
	case sndex.CmdGetDSPMixRate:
		return ok, s.dsp
	case sndex.CmdGetVolume:
		v := s.volume
		if param&sndex.VolumeKeep != 0 && s.shutter {
			v = s.kept
		}
		if param&sndex.VolumeEightLevel != 0 {
			v = to8Level(v)
		}
		return ok, v
	case sndex.CmdGetDevice:
		return ok, uint8(s.device)
	case sndex.CmdHPConnect:
		return ok, boolVal(s.headphone)

	case sndex.CmdSetMute:
		if param > uint16(sndex.MuteOn) {
			return invalid, 0
		}
		s.mute = sndex.Mute(param)
	case sndex.CmdSetFrequency:
		if param > uint16(sndex.Freq47610) {
			return invalid, 0
		}
		s.freq = sndex.Frequency(param)
	case sndex.CmdSetDSPMixRate:
		if param > sndex.DSPMixRateMax {
			return invalid, 0
		}
		s.dsp = uint8(param)
	case sndex.CmdSetVolume:
		v := uint8(param & sndex.VolumeValueMask)
		if param&sndex.VolumeEightLevel != 0 {
			if v > sndex.VolumeMax {
				return invalid, 0
			}
			v = from8Level(v)
		}
		s.volume = v
	case sndex.CmdSetDevice:
		if param > uint16(sndex.DeviceBoth) {
			return invalid, 0
		}
		s.device = sndex.Device(param)

	case sndex.CmdSetIirTarget:
		if param >= uint16(sndex.IirTargetMax) {
			return invalid, 0
		}
		s.target = sndex.IirTarget(param)
	case sndex.CmdSetIirN0:
		s.staged.N0 = param
	case sndex.CmdSetIirN1:
		s.staged.N1 = param
	case sndex.CmdSetIirN2:
		s.staged.N2 = param
	case sndex.CmdSetIirD1:
		s.staged.D1 = param
	case sndex.CmdSetIirD2:
		s.staged.D2 = param
	case sndex.CmdSetIir:
		s.filters[s.target] = s.staged

	case sndex.CmdPreProcShutter:
		if !s.shutter {
			s.kept = s.volume
			s.volume = sndex.VolumeMaxEx
			s.shutter = true
		}
	case sndex.CmdPostProcShutter:
		if !s.shutter {
			return sndex.PxiIllegalState, 0
		}
		s.volume = s.kept
		s.shutter = false

	default:
		return sndex.PxiInvalidCommand, 0
	}
	return ok, 0
}

// PressVolumeSwitch notifies the driver that the volume switch was pressed.
func (s *Sound) PressVolumeSwitch() error {
	return s.ch.Send(pxi.TagSndex, sndex.Pack(sndex.CmdPressVolSwitch, sndex.PxiSuccess, 0))
}

// FailNext makes the next request for cmd fail with res, after it was
// executed.
func (s *Sound) FailNext(cmd sndex.Command, res sndex.PxiResult) {
	s.mu.Lock()
	s.faults[cmd] = res
	s.mu.Unlock()
}

// Silence drops all requests for cmd without reply while on is set.
func (s *Sound) Silence(cmd sndex.Command, on bool) {
	s.mu.Lock()
	s.silenced[cmd] = on
	s.mu.Unlock()
}

// History returns all commands received so far.
func (s *Sound) History() []sndex.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Sound) Volume() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Sound) Mute() sndex.Mute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mute
}

func (s *Sound) Device() sndex.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *Sound) Shutter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutter
}

// Filter returns the coefficients written to target.
func (s *Sound) Filter(target sndex.IirTarget) sndex.IirFilterParam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters[target]
}

// SetHeadphone simulates plugging or unplugging headphones.
func (s *Sound) SetHeadphone(connected bool) {
	s.mu.Lock()
	s.headphone = connected
	s.mu.Unlock()
}
