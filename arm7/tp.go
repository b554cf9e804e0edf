package arm7

import (
	"context"
	"slices"
	"sync"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/spi"
	"github.com/clktmr/twl/drivers/tp"
	"github.com/clktmr/twl/pxi"
)

// TouchPanel answers touch panel requests. The contact point is set with
// Touch and Release. Auto sampling reports frequency samples per Tick.
type TouchPanel struct {
	ch   pxi.Channel
	work *pxi.SystemWork

	mu       sync.Mutex
	rd       spi.Reader
	x, y     uint16
	touch    bool
	validity tp.Validity

	auto      bool
	frequency uint8
	vcount    uint16
	stability uint8

	faults  map[tp.Command]spi.Result
	history []tp.Command
}

// NewTouchPanel returns a touch panel answering on ch.
func NewTouchPanel(ch pxi.Channel, work *pxi.SystemWork) *TouchPanel {
	p := &TouchPanel{
		ch:        ch,
		work:      work,
		stability: 20,
		faults:    make(map[tp.Command]spi.Result),
	}
	ch.SetHandler(pxi.TagTouchPanel, p.handle)
	return p
}

// Touch simulates contact at the raw coordinates x and y.
func (p *TouchPanel) Touch(x, y uint16) {
	p.mu.Lock()
	p.x, p.y, p.touch, p.validity = x, y, true, tp.Valid
	p.mu.Unlock()
}

// Release ends the contact.
func (p *TouchPanel) Release() {
	p.mu.Lock()
	p.touch = false
	p.mu.Unlock()
}

// SetValidity marks the coordinates of the following samples as unsettled.
func (p *TouchPanel) SetValidity(v tp.Validity) {
	p.mu.Lock()
	p.validity = v
	p.mu.Unlock()
}

func (p *TouchPanel) store() {
	if !p.touch {
		p.work.TouchPanel.Store(pxi.PackTouch(0, 0, false, uint8(tp.InvalidXY)))
		return
	}
	p.work.TouchPanel.Store(pxi.PackTouch(p.x, p.y, true, uint8(p.validity)))
}

func (p *TouchPanel) handle(ctx context.Context, tag pxi.Tag, data uint32, err bool) {
	if err {
		debug.Warn("arm7: tp: damaged request dropped", "data", data)
		return
	}

	p.mu.Lock()
	c, arg, rest, done, perr := p.rd.Push(data)
	if perr != nil {
		p.mu.Unlock()
		debug.Warn("arm7: tp: bad packet", "err", perr)
		return
	}
	if !done {
		p.mu.Unlock()
		return
	}
	cmd := tp.Command(c)
	p.history = append(p.history, cmd)
	res := p.exec(cmd, arg, rest)
	if fault, ok := p.faults[cmd]; ok {
		delete(p.faults, cmd)
		res = fault
	}
	p.mu.Unlock()

	p.reply(cmd, res)
}

func (p *TouchPanel) reply(cmd tp.Command, res spi.Result) {
	if err := p.ch.Send(pxi.TagTouchPanel, spi.Reply(uint8(cmd), res)); err != nil {
		debug.Warn("arm7: tp: reply not sent", "cmd", cmd, "err", err)
	}
}

func (p *TouchPanel) exec(cmd tp.Command, arg uint8, rest []uint16) spi.Result {
	switch cmd {
	case tp.CmdSampling:
		if p.auto {
			return spi.IllegalStatus
		}
		p.store()
	case tp.CmdAutoOn:
		if p.auto {
			return spi.IllegalStatus
		}
		if arg == 0 || arg > tp.MaxFrequency || len(rest) != 1 || rest[0] >= tp.LCDLines {
			return spi.InvalidParameter
		}
		p.auto, p.frequency, p.vcount = true, arg, rest[0]
	case tp.CmdAutoOff:
		if !p.auto {
			return spi.IllegalStatus
		}
		p.auto = false
	case tp.CmdSetStability:
		if arg == 0 {
			return spi.InvalidParameter
		}
		p.stability = arg
	default:
		return spi.InvalidCommand
	}
	return spi.Success
}

// Tick simulates one frame. If auto sampling runs, the driver is notified
// of frequency samples.
func (p *TouchPanel) Tick() {
	p.mu.Lock()
	if !p.auto {
		p.mu.Unlock()
		return
	}
	n := int(p.frequency)
	p.store()
	p.mu.Unlock()

	for range n {
		if err := p.ch.Send(pxi.TagTouchPanel, spi.Reply(uint8(tp.CmdAutoSampling), spi.Success)); err != nil {
			debug.Warn("arm7: tp: sample not sent", "err", err)
			return
		}
	}
}

// Auto reports whether auto sampling runs.
func (p *TouchPanel) Auto() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auto
}

func (p *TouchPanel) Stability() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stability
}

func (p *TouchPanel) FailNext(cmd tp.Command, res spi.Result) {
	p.mu.Lock()
	p.faults[cmd] = res
	p.mu.Unlock()
}

func (p *TouchPanel) History() []tp.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}
