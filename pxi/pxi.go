// Package pxi simulates the single-word FIFO between the two processors.
//
// Every word carries a 5-bit tag selecting the receiving subsystem and 26 bits
// of payload. Words are delivered in order to the handler registered for the
// tag on the other side. Handlers run on the link's dispatcher and must be
// treated like interrupt handlers: they may not block on replies from the
// peer.
package pxi

import (
	"context"
	"errors"
	"fmt"
)

// Tag selects the subsystem a word is addressed to.
type Tag uint8

const (
	TagUser0      Tag = 1
	TagUser1      Tag = 2
	TagTouchPanel Tag = 6
	TagSound      Tag = 7
	TagPM         Tag = 8
	TagMic        Tag = 9
	TagSndex      Tag = 18

	NumTags = 32
)

func (t Tag) String() string {
	switch t {
	case TagUser0:
		return "user0"
	case TagUser1:
		return "user1"
	case TagTouchPanel:
		return "touchpanel"
	case TagSound:
		return "sound"
	case TagPM:
		return "pm"
	case TagMic:
		return "mic"
	case TagSndex:
		return "sndex"
	}
	return fmt.Sprintf("tag%d", uint8(t))
}

const (
	DataBits = 26
	DataMask = 1<<DataBits - 1
)

var (
	ErrFifoFull   = errors.New("pxi: send fifo full")
	ErrClosed     = errors.New("pxi: link closed")
	ErrInvalidTag = errors.New("pxi: invalid tag")
)

// Handler receives a word addressed to its tag. err is set if the word was
// damaged in transit. ctx is an interrupt context, see IsInterrupt.
type Handler func(ctx context.Context, tag Tag, data uint32, err bool)

// Channel is the side of a link a driver talks to.
type Channel interface {
	// Send enqueues a word for the peer. It never blocks and fails with
	// ErrFifoFull if the peer hasn't drained enough words yet.
	Send(tag Tag, data uint32) error

	// SetHandler registers h for words with the given tag. A nil handler
	// unregisters.
	SetHandler(tag Tag, h Handler)

	// IsReady reports whether the peer has registered a handler for tag.
	IsReady(tag Tag) bool
}

// Word is the encoded form of a FIFO entry.
type Word uint32

const (
	wordTagMask   = 0x1f
	wordErrBit    = 1 << 5
	wordDataShift = 6
)

func MakeWord(tag Tag, data uint32, err bool) Word {
	w := Word(tag&wordTagMask) | Word(data&DataMask)<<wordDataShift
	if err {
		w |= wordErrBit
	}
	return w
}

func (w Word) Tag() Tag     { return Tag(w & wordTagMask) }
func (w Word) Data() uint32 { return uint32(w >> wordDataShift) }
func (w Word) Err() bool    { return w&wordErrBit != 0 }
