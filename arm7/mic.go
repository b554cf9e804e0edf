package arm7

import (
	"context"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/clktmr/twl/debug"
	"github.com/clktmr/twl/drivers/mic"
	"github.com/clktmr/twl/drivers/spi"
	"github.com/clktmr/twl/pxi"
)

// Mic answers microphone requests. Auto sampling writes one sample per Tick
// into shared memory.
type Mic struct {
	ch   pxi.Channel
	work *pxi.SystemWork
	mem  *pxi.Memory

	mu     sync.Mutex
	rd     spi.Reader
	source func(n int) uint16
	n      int // samples taken

	auto    bool
	limited bool // auto sampling was started as limited sampling
	flags   uint8
	buf   uint32
	size  uint32
	rate  uint32
	pos   uint32

	faults  map[mic.Command]spi.Result
	history []mic.Command
}

// NewMic returns a microphone answering on ch. Auto sampling buffers must
// lie in mem.
func NewMic(ch pxi.Channel, work *pxi.SystemWork, mem *pxi.Memory) *Mic {
	m := &Mic{
		ch:     ch,
		work:   work,
		mem:    mem,
		source: func(n int) uint16 { return uint16(n*64) & 0xfff },
		faults: make(map[mic.Command]spi.Result),
	}
	ch.SetHandler(pxi.TagMic, m.handle)
	return m
}

// SetSource sets the input signal. fn returns the 12-bit level of the n-th
// sample.
func (m *Mic) SetSource(fn func(n int) uint16) {
	m.mu.Lock()
	m.source = fn
	m.mu.Unlock()
}

// sample converts the next input level to the format in flags.
func (m *Mic) sample(flags uint8) uint16 {
	v := m.source(m.n) & 0xfff
	m.n++
	switch flags & mic.FormatMask {
	case mic.Flag8Bit:
		return v >> 4
	case mic.FlagSigned8:
		return (v >> 4) ^ 0x80
	case mic.Flag12Bit:
		return v << 4
	}
	return (v << 4) ^ 0x8000
}

func (m *Mic) handle(ctx context.Context, tag pxi.Tag, data uint32, err bool) {
	if err {
		debug.Warn("arm7: mic: damaged request dropped", "data", data)
		return
	}

	m.mu.Lock()
	c, arg, rest, done, perr := m.rd.Push(data)
	if perr != nil {
		m.mu.Unlock()
		debug.Warn("arm7: mic: bad packet", "err", perr)
		return
	}
	if !done {
		m.mu.Unlock()
		return
	}
	cmd := mic.Command(c)
	m.history = append(m.history, cmd)
	res := m.exec(cmd, arg, rest)
	if fault, ok := m.faults[cmd]; ok {
		delete(m.faults, cmd)
		res = fault
	}
	m.mu.Unlock()

	m.reply(cmd, res)
}

func (m *Mic) reply(cmd mic.Command, res spi.Result) {
	if err := m.ch.Send(pxi.TagMic, spi.Reply(uint8(cmd), res)); err != nil {
		debug.Warn("arm7: mic: reply not sent", "cmd", cmd, "err", err)
	}
}

func (m *Mic) exec(cmd mic.Command, arg uint8, rest []uint16) spi.Result {
	switch cmd {
	case mic.CmdSampling:
		m.work.MicSample.Store(uint32(m.sample(arg)))
	case mic.CmdAutoOn, mic.CmdLimitedOn:
		if m.auto {
			return spi.IllegalStatus
		}
		if len(rest) != 6 {
			return spi.InvalidParameter
		}
		buf, size := spi.Join(rest[0], rest[1]), spi.Join(rest[2], rest[3])
		rate := spi.Join(rest[4], rest[5])
		limited := cmd == mic.CmdLimitedOn
		if !m.mem.Contains(buf, int(size)) || limited && !mic.LimitedRate(rate) {
			return spi.InvalidParameter
		}
		m.auto, m.limited, m.flags = true, limited, arg
		if limited {
			m.flags &^= mic.FlagCorrect
		}
		m.buf, m.size, m.pos = buf, size, 0
		m.rate = rate
	case mic.CmdAutoOff, mic.CmdLimitedOff:
		if !m.auto || m.limited != (cmd == mic.CmdLimitedOff) {
			return spi.IllegalStatus
		}
		m.auto = false
	case mic.CmdAutoAdjust, mic.CmdLimitedAdjust:
		if !m.auto || m.limited != (cmd == mic.CmdLimitedAdjust) {
			return spi.IllegalStatus
		}
		if len(rest) != 2 {
			return spi.InvalidParameter
		}
		rate := spi.Join(rest[0], rest[1])
		if m.limited && !mic.LimitedRate(rate) {
			return spi.InvalidParameter
		}
		m.rate = rate
	default:
		return spi.InvalidCommand
	}
	return spi.Success
}

// Tick takes one sample if auto sampling runs. When a buffer without loop is
// full, auto sampling stops and the driver is notified.
func (m *Mic) Tick() {
	m.mu.Lock()
	if !m.auto {
		m.mu.Unlock()
		return
	}
	addr := m.buf + m.pos
	v := m.sample(m.flags)
	width := mic.SampleSize(m.flags)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	m.mem.Write(addr, b[:width])
	m.work.MicLastAddress.Store(addr)

	m.pos += width
	full := false
	if m.pos >= m.size {
		m.pos = 0
		if m.flags&mic.FlagLoop == 0 {
			m.auto = false
			full = true
		}
	}
	m.mu.Unlock()

	if full {
		m.reply(mic.CmdBufferFull, spi.Success)
	}
}

// Auto reports whether auto sampling runs, and its interval.
func (m *Mic) Auto() (running bool, rate uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auto, m.rate
}

// Limited reports whether the running auto sampling is a limited sampling.
func (m *Mic) Limited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auto && m.limited
}

// FailNext makes the next request for cmd fail with res, after it was
// executed.
func (m *Mic) FailNext(cmd mic.Command, res spi.Result) {
	m.mu.Lock()
	m.faults[cmd] = res
	m.mu.Unlock()
}

func (m *Mic) History() []mic.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}
