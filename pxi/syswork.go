package pxi

import "sync/atomic"

// SystemWork is the memory area both processors read and write directly,
// outside of the FIFO.
type SystemWork struct {
	MicLastAddress atomic.Uint32 // Address of the latest auto-sampling result
	MicSample      atomic.Uint32 // Result of the latest single sampling
	TouchPanel     atomic.Uint32 // Latest touch panel sample, see PackTouch
}

// Touch panel samples are packed as 12 bits x, 12 bits y, 1 bit touch and
// 2 bits validity.
const (
	touchXShift        = 0
	touchYShift        = 12
	touchTouchShift    = 24
	touchValidityShift = 25
)

func PackTouch(x, y uint16, touch bool, validity uint8) uint32 {
	v := uint32(x&0xfff)<<touchXShift | uint32(y&0xfff)<<touchYShift |
		uint32(validity&0x3)<<touchValidityShift
	if touch {
		v |= 1 << touchTouchShift
	}
	return v
}

func UnpackTouch(v uint32) (x, y uint16, touch bool, validity uint8) {
	x = uint16(v>>touchXShift) & 0xfff
	y = uint16(v>>touchYShift) & 0xfff
	touch = v&(1<<touchTouchShift) != 0
	validity = uint8(v>>touchValidityShift) & 0x3
	return
}
