// Package pxisim boots a link with simulated peripherals and runs scripted
// driver operations against it. A script has one command per line:
//
//	mute [on|off]
//	volume [0-31]
//	device [auto|speaker|headphone|both]
//	iir <adc1-adc5> <n0> <n1> <n2> <d1> <d2>
//	shutter on|off
//	mic sample [8bit|12bit|s8bit|s12bit]
//	mic auto <bytes>
//	mic limited <bytes>
//	tp touch <x> <y>
//	tp release
//	tp sample
//	stats
//
// Empty lines and lines starting with '#' are skipped.
package pxisim

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/clktmr/twl/arm7"
	"github.com/clktmr/twl/drivers/mic"
	"github.com/clktmr/twl/drivers/sndex"
	"github.com/clktmr/twl/drivers/tp"
	"github.com/clktmr/twl/pxi"

	"github.com/buildkite/shellwords"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrSyntax is returned for script lines that can't be parsed.
var ErrSyntax = errors.New("pxisim: syntax error")

const memBase = 0x02000000

// Config configures a Sim.
type Config struct {
	Tick    time.Duration // Interval of microphone samples
	Frame   time.Duration // Interval of touch panel auto sampling
	MemSize int           // Bytes of shared memory for sample buffers
	Timeout time.Duration // Bound for waiting on a full sample buffer
}

var DefaultConfig = Config{
	Tick:    100 * time.Microsecond,
	Frame:   16 * time.Millisecond,
	MemSize: 0x10000,
	Timeout: 5 * time.Second,
}

// Sim owns a link, the simulated peripherals and the drivers talking to
// them.
type Sim struct {
	cfg Config
	out io.Writer
	p   *message.Printer

	link *pxi.Link
	mem  *pxi.Memory
	sys  *arm7.System

	snd *sndex.Driver
	mic *mic.Driver
	tp  *tp.Driver
}

// New returns a simulator writing its results to out.
func New(cfg Config, out io.Writer) *Sim {
	link := pxi.NewLink(pxi.Config{})
	mem := pxi.NewMemory(memBase, cfg.MemSize)
	return &Sim{
		cfg:  cfg,
		out:  out,
		p:    message.NewPrinter(language.English),
		link: link,
		mem:  mem,
		sys:  arm7.New(link, mem),
		snd:  sndex.New(link.ARM9()),
		mic:  mic.New(link.ARM9(), &link.Work),
		tp:   tp.New(link.ARM9(), &link.Work),
	}
}

// System returns the simulated peripherals.
func (s *Sim) System() *arm7.System { return s.sys }

// Run starts the link, initializes the drivers and executes the script read
// from r. Failed operations are reported to the output and don't stop the
// script, syntax errors do.
func (s *Sim) Run(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.link.Run(ctx) })
	g.Go(func() error { return s.sys.Run(ctx, s.cfg.Tick, s.cfg.Frame) })

	err := s.run(ctx, r)
	s.link.Close()
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) && err == nil {
		err = werr
	}
	return err
}

func (s *Sim) run(ctx context.Context, r io.Reader) error {
	if err := s.snd.Init(ctx); err != nil {
		return errors.Wrap(err, "sndex init")
	}
	if err := s.mic.Init(ctx); err != nil {
		return errors.Wrap(err, "mic init")
	}
	if err := s.tp.Init(ctx); err != nil {
		return errors.Wrap(err, "tp init")
	}

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shellwords.SplitPosix(line)
		if err != nil {
			return errors.Wrapf(ErrSyntax, "line %d: %v", n, err)
		}
		if err := s.Exec(ctx, args); err != nil {
			if errors.Is(err, ErrSyntax) {
				return errors.Wrapf(err, "line %d", n)
			}
			fmt.Fprintf(s.out, "%d: %v\n", n, err)
		}
	}
	return sc.Err()
}

func choice[T ~uint8 | ~uint16](arg string, names ...string) (T, error) {
	for i, name := range names {
		if arg == name {
			return T(i), nil
		}
	}
	return 0, errors.Wrapf(ErrSyntax, "%q is not one of %s", arg, strings.Join(names, ", "))
}

func number(arg string, limit uint64) (uint64, error) {
	v, err := strconv.ParseUint(arg, 0, 64)
	if err != nil || v > limit {
		return 0, errors.Wrapf(ErrSyntax, "%q is not a number up to %d", arg, limit)
	}
	return v, nil
}

// Exec executes a single command. The link must be running.
func (s *Sim) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(ErrSyntax, "empty command")
	}
	switch cmd, args := args[0], args[1:]; cmd {
	case "mute":
		return s.mute(ctx, args)
	case "volume":
		return s.volume(ctx, args)
	case "device":
		return s.device(ctx, args)
	case "iir":
		return s.iir(ctx, args)
	case "shutter":
		return s.shutter(ctx, args)
	case "mic":
		return s.micCmd(ctx, args)
	case "tp":
		return s.tpCmd(ctx, args)
	case "stats":
		s.p.Fprintf(s.out, "arm9 sent %d words, arm7 sent %d words\n",
			s.link.ARM9().Sent(), s.link.ARM7().Sent())
		return nil
	default:
		return errors.Wrapf(ErrSyntax, "unknown command %q", cmd)
	}
}

var muteNames = []string{"off", "on"}

func (s *Sim) mute(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		m, r := s.snd.GetMute(ctx)
		if err := r.Err(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "mute %s\n", muteNames[m])
		return nil
	case 1:
		m, err := choice[sndex.Mute](args[0], muteNames...)
		if err != nil {
			return err
		}
		return s.snd.SetMute(ctx, m).Err()
	}
	return errors.Wrap(ErrSyntax, "usage: mute [on|off]")
}

func (s *Sim) volume(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		v, r := s.snd.GetVolumeEx(ctx)
		if err := r.Err(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "volume %d\n", v)
		return nil
	case 1:
		v, err := number(args[0], sndex.VolumeMaxEx)
		if err != nil {
			return err
		}
		return s.snd.SetVolumeEx(ctx, uint8(v)).Err()
	}
	return errors.Wrap(ErrSyntax, "usage: volume [0-31]")
}

var deviceNames = []string{"auto", "speaker", "headphone", "both"}

func (s *Sim) device(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		d, r := s.snd.GetDevice(ctx)
		if err := r.Err(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "device %s\n", deviceNames[d])
		return nil
	case 1:
		d, err := choice[sndex.Device](args[0], deviceNames...)
		if err != nil {
			return err
		}
		return s.snd.SetDevice(ctx, d).Err()
	}
	return errors.Wrap(ErrSyntax, "usage: device [auto|speaker|headphone|both]")
}

func (s *Sim) iir(ctx context.Context, args []string) error {
	if len(args) != 6 {
		return errors.Wrap(ErrSyntax, "usage: iir <target> <n0> <n1> <n2> <d1> <d2>")
	}
	target, err := choice[sndex.IirTarget](args[0], "adc1", "adc2", "adc3", "adc4", "adc5")
	if err != nil {
		return err
	}
	var c [5]uint16
	for i, arg := range args[1:] {
		v, err := number(arg, 0xffff)
		if err != nil {
			return err
		}
		c[i] = uint16(v)
	}
	param := sndex.IirFilterParam{N0: c[0], N1: c[1], N2: c[2], D1: c[3], D2: c[4]}
	return s.snd.SetIirFilter(ctx, target, param).Err()
}

func (s *Sim) shutter(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(ErrSyntax, "usage: shutter on|off")
	}
	on, err := choice[uint8](args[0], "off", "on")
	if err != nil {
		return err
	}
	if on == 1 {
		return s.snd.PreProcessForShutterSound(ctx).Err()
	}
	return s.snd.PostProcessForShutterSound(ctx).Err()
}

var samplingTypes = []mic.SamplingType{mic.Bit8, mic.Bit12, mic.Signed8, mic.Signed12}

func (s *Sim) micCmd(ctx context.Context, args []string) error {
	switch {
	case len(args) >= 1 && len(args) <= 2 && args[0] == "sample":
		typ := mic.Bit12
		if len(args) == 2 {
			names := make([]string, len(samplingTypes))
			for i, t := range samplingTypes {
				names[i] = t.String()
			}
			i, err := choice[uint8](args[1], names...)
			if err != nil {
				return err
			}
			typ = samplingTypes[i]
		}
		v, r := s.mic.DoSampling(ctx, typ)
		if err := r.Err(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "mic %s 0x%04x\n", typ, v)
		return nil
	case len(args) == 2 && (args[0] == "auto" || args[0] == "limited"):
		size, err := number(args[1], uint64(s.mem.Size()))
		if err != nil {
			return err
		}
		return s.micAuto(ctx, uint32(size), args[0] == "limited")
	}
	return errors.Wrap(ErrSyntax, "usage: mic sample [type] | mic auto|limited <bytes>")
}

// micAuto samples into a new buffer of size bytes until it is full. Limited
// sampling runs at the 16.36 kHz codec rate.
func (s *Sim) micAuto(ctx context.Context, size uint32, limited bool) error {
	size = (size + 31) &^ 31
	buf, err := s.mem.Alloc(int(size), 32)
	if err != nil {
		return err
	}
	full := make(chan mic.Result, 1)
	p := mic.AutoParam{
		Type:   mic.Bit8,
		Buffer: buf,
		Size:   size,
		Rate:   mic.Rate16K,
		Full:   func(ctx context.Context, r mic.Result) { full <- r },
	}
	start, stop, name := s.mic.StartAutoSampling, s.mic.StopAutoSampling, "auto"
	if limited {
		p.Rate = mic.Rate16360
		start, stop, name = s.mic.StartLimitedSampling, s.mic.StopLimitedSampling, "limited"
	}
	if err := start(ctx, p).Err(); err != nil {
		return err
	}
	select {
	case r := <-full:
		if err := r.Err(); err != nil {
			return err
		}
	case <-time.After(s.cfg.Timeout):
		stop(ctx)
		return errors.Newf("pxisim: buffer not full after %v", s.cfg.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	s.p.Fprintf(s.out, "mic %s %d bytes at 0x%08x, last 0x%08x\n",
		name, size, buf, s.mic.LastSamplingAddress())
	return nil
}

func (s *Sim) tpCmd(ctx context.Context, args []string) error {
	switch {
	case len(args) == 3 && args[0] == "touch":
		x, err := number(args[1], 0xfff)
		if err != nil {
			return err
		}
		y, err := number(args[2], 0xfff)
		if err != nil {
			return err
		}
		s.sys.TouchPanel.Touch(uint16(x), uint16(y))
		return nil
	case len(args) == 1 && args[0] == "release":
		s.sys.TouchPanel.Release()
		return nil
	case len(args) == 1 && args[0] == "sample":
		if err := s.tp.RequestSamplingAsync().Err(); err != nil {
			return err
		}
		v, err := s.tp.WaitRawResult(ctx)
		if err != nil {
			return err
		}
		if !v.Touch {
			fmt.Fprintln(s.out, "tp released")
			return nil
		}
		fmt.Fprintf(s.out, "tp %d %d\n", v.X, v.Y)
		return nil
	}
	return errors.Wrap(ErrSyntax, "usage: tp touch <x> <y> | tp release | tp sample")
}
