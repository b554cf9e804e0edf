package texvram

import (
	"fmt"
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Dump writes the free blocks of both regions to w.
func (m *Manager) Dump(w io.Writer) {
	fmt.Fprint(w, "=== LnkTexVramManager Dump ============\n")
	fmt.Fprint(w, "   address:        size    \n")
	fmt.Fprint(w, "=======================================\n")
	fmt.Fprint(w, "------ Normal Texture Free Blocks -----\n")
	m.nrm.Dump(w, m.size)
	fmt.Fprint(w, "------ 4x4    Texture Free Blocks -----\n")
	if m.size4x4 != 0 {
		m.c4x4.Dump(w, m.size4x4)
	}
	fmt.Fprint(w, "=======================================\n")
}

// DumpFunc calls nrm and c4x4 for each free block of the normal and
// compressed region. Either may be nil.
func (m *Manager) DumpFunc(nrm, c4x4 func(addr, size uint32)) {
	if nrm != nil {
		m.nrm.DumpFunc(nrm)
	}
	if c4x4 != nil && m.size4x4 != 0 {
		m.c4x4.DumpFunc(c4x4)
	}
}

// WriteJSON writes the state of both regions as a JSON object.
func (m *Manager) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("Size").Int(int(m.size))
	obj.Name("Size4x4").Int(int(m.size4x4))
	m.nrm.WriteJSON(obj.Name("Normal"))
	m.c4x4.WriteJSON(obj.Name("Compressed4x4"))
	obj.End()
}
