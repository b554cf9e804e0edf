package frmtexvram

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DumpFunc calls fn for each region with the absolute addresses of its free
// space and its capacity when empty.
func (m *Manager) DumpFunc(fn func(index int, head, tail, size uint32, active bool)) {
	for i, r := range m.regions {
		fn(i, layout[i].base+r.head, layout[i].base+r.tail, layout[i].size, r.active)
	}
}

// Dump writes one line per region to w, followed by the usage of the active
// regions.
func (m *Manager) Dump(w io.Writer) {
	var free, reserved uint32
	fmt.Fprint(w, "=== FrmTexVramManager Dump ============\n")
	fmt.Fprint(w, "index : head-addr   : tail-addr   : free-size \n")
	m.DumpFunc(func(index int, head, tail, size uint32, active bool) {
		if !active {
			fmt.Fprintf(w, "%02d    : ----------  : ----------  : ----------  \n", index)
			return
		}
		fmt.Fprintf(w, "%02d    : 0x%08x  : 0x%08x  : 0x%08x  \n", index, head, tail, tail-head)
		free += tail - head
		reserved += size
	})
	used := reserved - free
	fmt.Fprintf(w, "    %08d / %08d bytes (%6.2f%%) used \n",
		used, reserved, float64(used)/float64(reserved)*100)
	fmt.Fprint(w, "=======================================\n")
}

// WriteJSON writes the state of all regions as a JSON object.
func (m *Manager) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("Slots").Int(m.slots)
	obj.Name("FreeBytes").Int(int(m.FreeBytes()))
	regions := obj.Name("Regions").Array()
	m.DumpFunc(func(index int, head, tail, size uint32, active bool) {
		r := regions.Object()
		r.Name("Index").Int(index)
		r.Name("Active").Bool(active)
		r.Name("Head").Int(int(head))
		r.Name("Tail").Int(int(tail))
		r.End()
	})
	regions.End()
	obj.End()
}
