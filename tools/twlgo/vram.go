package main

import (
	"github.com/clktmr/twl/gfd/frmplttvram"
	"github.com/clktmr/twl/gfd/frmtexvram"
	"github.com/clktmr/twl/gfd/plttvram"
	"github.com/clktmr/twl/gfd/texvram"
	"github.com/clktmr/twl/tools/vramsim"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var vramFlags struct {
	json    bool
	size    uint32
	size4x4 uint32
	blocks  int
	slots   int
}

func newVramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vram tex|pltt|frmtex|frmpltt [script]",
		Short: "Run allocations against a VRAM manager",
		Long: `The vram command runs a script of alloc, free, mark, restore, reset, check,
usage and dump commands against a texture or palette VRAM manager. tex and
pltt use the linked managers, frmtex and frmpltt the frame managers. The
script is read from stdin if no file is given.

Example:
  twlgo vram tex --size 0x80000 --size4x4 0x20000 allocs.txt
  printf 'alloc a 0x100 4color\ndump\n' | twlgo vram pltt --json
  twlgo vram frmtex --slots 2 frames.txt`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"tex", "pltt", "frmtex", "frmpltt"},
		RunE:      runVram,
	}
	cmd.Flags().BoolVar(&vramFlags.json, "json", false, "dump in JSON format")
	cmd.Flags().Uint32Var(&vramFlags.size, "size", 0x80000, "bytes of VRAM managed")
	cmd.Flags().Uint32Var(&vramFlags.size4x4, "size4x4", 0, "bytes for 4x4 compressed textures")
	cmd.Flags().IntVar(&vramFlags.blocks, "blocks", 64, "number of free list blocks")
	cmd.Flags().IntVar(&vramFlags.slots, "slots", 4, "texture slots of the frame manager")
	return cmd
}

func runVram(cmd *cobra.Command, args []string) error {
	var sim *vramsim.Sim
	out := cmd.OutOrStdout()
	switch args[0] {
	case "tex":
		m, err := texvram.New(vramFlags.size, vramFlags.size4x4, vramFlags.blocks)
		if err != nil {
			return err
		}
		sim = vramsim.NewTex(m, out, vramFlags.json)
	case "pltt":
		m, err := plttvram.New(plttSize(cmd), vramFlags.blocks)
		if err != nil {
			return err
		}
		sim = vramsim.NewPltt(m, out, vramFlags.json)
	case "frmtex":
		m, err := frmtexvram.New(vramFlags.slots)
		if err != nil {
			return err
		}
		sim = vramsim.NewFrmTex(m, out, vramFlags.json)
	case "frmpltt":
		m, err := frmplttvram.New(plttSize(cmd))
		if err != nil {
			return err
		}
		sim = vramsim.NewFrmPltt(m, out, vramFlags.json)
	default:
		return errors.Newf("unknown manager %q, want tex, pltt, frmtex or frmpltt", args[0])
	}

	f, done, err := openScript(args[1:])
	if err != nil {
		return err
	}
	defer done()
	return sim.Run(f)
}

// plttSize defaults to all of palette VRAM, --size defaults to texture VRAM.
func plttSize(cmd *cobra.Command) uint32 {
	if !cmd.Flags().Changed("size") {
		return plttvram.MaxManaged
	}
	return vramFlags.size
}
