// Package gfd contains the errors shared by the VRAM managers in its
// subpackages. The managers hand out keys which encode address and size of an
// allocation, so a region can be freed with the key alone.
package gfd

import (
	"math"

	"github.com/clktmr/twl/gfd/lnkvram"

	"github.com/cockroachdb/errors"
)

var (
	ErrAllocFailed = errors.New("gfd: no free region large enough")
	ErrTooLarge    = errors.New("gfd: size exceeds key range")
	ErrInvalidSize = errors.New("gfd: invalid size")
	ErrFreeFailed  = errors.New("gfd: no block left to register free region")
	ErrOutOfRange  = errors.New("gfd: region not addressable")
)

// KeyUnit is the granularity of addresses and sizes stored in keys.
const KeyUnit = 8

// RoundUp rounds size up to KeyUnit. A zero size becomes KeyUnit, sizes that
// can't be rounded saturate.
func RoundUp(size uint32) uint32 {
	if size > math.MaxUint32-(KeyUnit-1) {
		return math.MaxUint32
	}
	return max(lnkvram.AlignUp(size, KeyUnit), KeyUnit)
}
