// Package vramsim runs scripted allocations against a texture or palette
// VRAM manager. A script has one command per line:
//
//	alloc <name> <size> [4x4|4color|high|4color-high]
//	free <name>
//	mark <name>
//	restore <name>
//	reset
//	check
//	usage
//	dump
//
// The flags high and 4color-high take palettes from the upper end of a frame
// palette manager. mark and restore save and restore the state of a frame
// manager. Empty lines and lines starting with '#' are skipped.
package vramsim

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/clktmr/twl/gfd/frmplttvram"
	"github.com/clktmr/twl/gfd/frmtexvram"
	"github.com/clktmr/twl/gfd/lnkvram"
	"github.com/clktmr/twl/gfd/plttvram"
	"github.com/clktmr/twl/gfd/texvram"

	"github.com/buildkite/shellwords"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrSyntax is returned for script lines that can't be parsed.
var ErrSyntax = errors.New("vramsim: syntax error")

type manager interface {
	alloc(size uint32, flag string) (uint32, error)
	free(key uint32) error
	reset() error
	validate() error
	dump(w io.Writer)
	writeJSON(w *jwriter.Writer)
	regions() map[string][]lnkvram.Region
}

type tex struct{ *texvram.Manager }

func (m tex) alloc(size uint32, flag string) (uint32, error) {
	if flag != "" && flag != "4x4" {
		return 0, errors.Wrapf(ErrSyntax, "unknown texture flag %q", flag)
	}
	k, err := m.Alloc(size, flag == "4x4")
	return uint32(k), err
}

func (m tex) free(key uint32) error       { return m.Free(texvram.Key(key)) }
func (m tex) reset() error                { return m.Reset() }
func (m tex) validate() error             { return m.Validate() }
func (m tex) dump(w io.Writer)            { m.Dump(w) }
func (m tex) writeJSON(w *jwriter.Writer) { m.WriteJSON(w) }

func (m tex) regions() map[string][]lnkvram.Region {
	return map[string][]lnkvram.Region{
		"normal": m.FreeBlocks(false),
		"4x4":    m.FreeBlocks(true),
	}
}

type pltt struct{ *plttvram.Manager }

func (m pltt) alloc(size uint32, flag string) (uint32, error) {
	if flag != "" && flag != "4color" {
		return 0, errors.Wrapf(ErrSyntax, "unknown palette flag %q", flag)
	}
	k, err := m.Alloc(size, flag == "4color")
	return uint32(k), err
}

func (m pltt) free(key uint32) error       { return m.Free(plttvram.Key(key)) }
func (m pltt) reset() error                { m.Reset(); return nil }
func (m pltt) validate() error             { return m.Validate() }
func (m pltt) dump(w io.Writer)            { m.Dump(w) }
func (m pltt) writeJSON(w *jwriter.Writer) { m.WriteJSON(w) }

func (m pltt) regions() map[string][]lnkvram.Region {
	return map[string][]lnkvram.Region{"palettes": m.FreeBlocks()}
}

// framed is implemented by the frame managers, which free by restoring an
// earlier state.
type framed interface {
	mark() any
	restore(state any) error
}

type frmTex struct{ *frmtexvram.Manager }

func (m frmTex) alloc(size uint32, flag string) (uint32, error) {
	if flag != "" && flag != "4x4" {
		return 0, errors.Wrapf(ErrSyntax, "unknown texture flag %q", flag)
	}
	k, err := m.Alloc(size, flag == "4x4")
	return uint32(k), err
}

func (m frmTex) free(key uint32) error       { return m.Free(texvram.Key(key)) }
func (m frmTex) reset() error                { m.Reset(); return nil }
func (m frmTex) validate() error             { return m.SetState(m.State()) }
func (m frmTex) dump(w io.Writer)            { m.Dump(w) }
func (m frmTex) writeJSON(w *jwriter.Writer) { m.WriteJSON(w) }
func (m frmTex) mark() any                   { return m.State() }

func (m frmTex) restore(state any) error {
	s, ok := state.(frmtexvram.State)
	if !ok {
		return errors.Newf("vramsim: %T is no texture state", state)
	}
	return m.SetState(s)
}

func (m frmTex) regions() map[string][]lnkvram.Region {
	var free []lnkvram.Region
	m.DumpFunc(func(_ int, head, tail, _ uint32, active bool) {
		if active && tail > head {
			free = append(free, lnkvram.Region{Addr: head, Size: tail - head})
		}
	})
	return map[string][]lnkvram.Region{"textures": free}
}

type frmPltt struct{ *frmplttvram.Manager }

func (m frmPltt) alloc(size uint32, flag string) (uint32, error) {
	from := frmplttvram.FromLow
	switch flag {
	case "", "4color":
	case "high", "4color-high":
		from = frmplttvram.FromHigh
	default:
		return 0, errors.Wrapf(ErrSyntax, "unknown palette flag %q", flag)
	}
	k, err := m.Alloc(size, strings.HasPrefix(flag, "4color"), from)
	return uint32(k), err
}

func (m frmPltt) free(key uint32) error       { return m.Free(plttvram.Key(key)) }
func (m frmPltt) reset() error                { m.Reset(); return nil }
func (m frmPltt) validate() error             { return m.SetState(m.State()) }
func (m frmPltt) dump(w io.Writer)            { m.Dump(w) }
func (m frmPltt) writeJSON(w *jwriter.Writer) { m.WriteJSON(w) }
func (m frmPltt) mark() any                   { return m.State() }

func (m frmPltt) restore(state any) error {
	s, ok := state.(frmplttvram.State)
	if !ok {
		return errors.Newf("vramsim: %T is no palette state", state)
	}
	return m.SetState(s)
}

func (m frmPltt) regions() map[string][]lnkvram.Region {
	var free []lnkvram.Region
	if s := m.State(); s.Hi > s.Lo {
		free = append(free, lnkvram.Region{Addr: s.Lo, Size: s.Hi - s.Lo})
	}
	return map[string][]lnkvram.Region{"palettes": free}
}

// Sim executes scripts against one manager and writes the results to an
// output.
type Sim struct {
	m    manager
	out  io.Writer
	p    *message.Printer
	json  bool
	keys  map[string]uint32
	marks map[string]any
}

func newSim(m manager, out io.Writer, json bool) *Sim {
	return &Sim{
		m:     m,
		out:   out,
		p:     message.NewPrinter(language.English),
		json:  json,
		keys:  make(map[string]uint32),
		marks: make(map[string]any),
	}
}

// NewTex returns a simulator for texture VRAM. dump writes JSON if json is
// set.
func NewTex(m *texvram.Manager, out io.Writer, json bool) *Sim {
	return newSim(tex{m}, out, json)
}

// NewPltt returns a simulator for palette VRAM.
func NewPltt(m *plttvram.Manager, out io.Writer, json bool) *Sim {
	return newSim(pltt{m}, out, json)
}

// NewFrmTex returns a simulator for texture VRAM managed as frames.
func NewFrmTex(m *frmtexvram.Manager, out io.Writer, json bool) *Sim {
	return newSim(frmTex{m}, out, json)
}

// NewFrmPltt returns a simulator for palette VRAM managed as frames.
func NewFrmPltt(m *frmplttvram.Manager, out io.Writer, json bool) *Sim {
	return newSim(frmPltt{m}, out, json)
}

// Run executes the script read from r. Failed allocations and frees are
// reported to the output and don't stop the script, syntax errors do.
func (s *Sim) Run(r io.Reader) error {
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
		if err := s.Exec(args); err != nil {
			if errors.Is(err, ErrSyntax) {
				return errors.Wrapf(err, "line %d", n)
			}
			fmt.Fprintf(s.out, "%d: %v\n", n, err)
		}
	}
	return sc.Err()
}

// Exec executes a single command.
func (s *Sim) Exec(args []string) error {
	if len(args) == 0 {
		return errors.Wrap(ErrSyntax, "empty command")
	}
	switch cmd, args := args[0], args[1:]; cmd {
	case "alloc":
		if len(args) < 2 || len(args) > 3 {
			return errors.Wrap(ErrSyntax, "usage: alloc <name> <size> [flag]")
		}
		size, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return errors.Wrapf(ErrSyntax, "size %q", args[1])
		}
		var flag string
		if len(args) == 3 {
			flag = args[2]
		}
		key, err := s.m.alloc(uint32(size), flag)
		if err != nil {
			return errors.Wrapf(err, "alloc %s", args[0])
		}
		s.keys[args[0]] = key
		fmt.Fprintf(s.out, "%s = %v\n", args[0], s.key(key))
	case "free":
		if len(args) != 1 {
			return errors.Wrap(ErrSyntax, "usage: free <name>")
		}
		key, ok := s.keys[args[0]]
		if !ok {
			return errors.Newf("vramsim: unknown allocation %q", args[0])
		}
		delete(s.keys, args[0])
		if err := s.m.free(key); err != nil {
			return errors.Wrapf(err, "free %s", args[0])
		}
	case "mark", "restore":
		if len(args) != 1 {
			return errors.Wrapf(ErrSyntax, "usage: %s <name>", cmd)
		}
		f, ok := s.m.(framed)
		if !ok {
			return errors.Newf("vramsim: %s needs a frame manager", cmd)
		}
		if cmd == "mark" {
			s.marks[args[0]] = f.mark()
			return nil
		}
		state, ok := s.marks[args[0]]
		if !ok {
			return errors.Newf("vramsim: unknown mark %q", args[0])
		}
		return f.restore(state)
	case "reset":
		clear(s.keys)
		return s.m.reset()
	case "check":
		if err := s.m.validate(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "ok")
	case "usage":
		s.usage()
	case "dump":
		if !s.json {
			s.m.dump(s.out)
			return nil
		}
		w := jwriter.NewWriter()
		s.m.writeJSON(&w)
		if err := w.Error(); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s\n", w.Bytes())
	default:
		return errors.Wrapf(ErrSyntax, "unknown command %q", cmd)
	}
	return nil
}

func (s *Sim) key(k uint32) fmt.Stringer {
	switch s.m.(type) {
	case tex, frmTex:
		return texvram.Key(k)
	default:
		return plttvram.Key(k)
	}
}

func (s *Sim) usage() {
	regions := s.m.regions()
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		var free, largest uint32
		for _, r := range regions[name] {
			free += r.Size
			largest = max(largest, r.Size)
		}
		s.p.Fprintf(s.out, "%s: %d bytes free in %d blocks, largest %d\n",
			name, free, len(regions[name]), largest)
	}
}
