// Package spi contains functions for creating and parsing the multi-word
// packets exchanged with the peripherals on the peer's SPI bus, like the
// touch panel and the microphone. It doesn't handle sending them.
//
// A packet is split into words of 16 bits payload. The first word carries
// the command in bits 8-15 and an 8-bit argument, the following words carry
// 16-bit arguments. Each word holds its index in the packet, the first and
// the last are marked.
package spi

import (
	"errors"
	"fmt"
)

var (
	ErrSequence = errors.New("spi: packet out of sequence")
	ErrLength   = errors.New("spi: packet too long")
)

const (
	StartBit = 0x02000000
	EndBit   = 0x01000000

	indexShift = 16
	indexMask  = 0xff
	dataMask   = 0xffff

	// Replies have bit 15 set and carry the command in bits 8-14 and the
	// result in bits 0-7.
	replyBit     = 0x8000
	commandMask  = 0x7f00
	commandShift = 8
	resultMask   = 0xff
)

// MaxWords is the longest packet a peer accepts.
const MaxWords = 16

// Result is the result code of a reply.
type Result uint8

const (
	Success Result = iota
	InvalidCommand
	InvalidParameter
	IllegalStatus
	Exclusive
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidCommand:
		return "invalid-command"
	case InvalidParameter:
		return "invalid-parameter"
	case IllegalStatus:
		return "illegal-status"
	case Exclusive:
		return "exclusive"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

// Word encodes a single word of a packet.
func Word(start, end bool, index uint8, data uint16) uint32 {
	w := uint32(index)<<indexShift | uint32(data)
	if start {
		w |= StartBit
	}
	if end {
		w |= EndBit
	}
	return w
}

// Packet returns the words of a command with an 8-bit argument arg and the
// 16-bit arguments in rest.
func Packet(cmd, arg uint8, rest ...uint16) []uint32 {
	words := make([]uint32, 0, 1+len(rest))
	words = append(words, Word(true, len(rest) == 0, 0, uint16(cmd)<<8|uint16(arg)))
	for i, v := range rest {
		words = append(words, Word(false, i == len(rest)-1, uint8(i+1), v))
	}
	return words
}

// Split returns the upper and lower half of v, in that order, as packet
// arguments.
func Split(v uint32) (hi, lo uint16) { return uint16(v >> 16), uint16(v) }

// Join reverses Split.
func Join(hi, lo uint16) uint32 { return uint32(hi)<<16 | uint32(lo) }

// Reply encodes a single-word reply to cmd.
func Reply(cmd uint8, r Result) uint32 {
	return StartBit | EndBit | replyBit | uint32(cmd)<<commandShift&commandMask | uint32(r)
}

// ParseReply decodes a word received from the peer. end is false for words
// that aren't the last of a packet.
func ParseReply(data uint32) (cmd uint8, r Result, end bool) {
	cmd = uint8((data & commandMask) >> commandShift)
	r = Result(data & resultMask)
	end = data&EndBit != 0
	return
}

// IsReply reports whether data has the reply bit set.
func IsReply(data uint32) bool { return data&replyBit != 0 }

// Reader reassembles packets on the receiving side.
type Reader struct {
	words []uint16
}

// Push adds a received word. When the word completes a packet, its command,
// 8-bit argument and remaining arguments are returned with done set. A word
// that doesn't continue the current packet discards it and returns an
// error.
func (r *Reader) Push(data uint32) (cmd, arg uint8, rest []uint16, done bool, err error) {
	index := uint8(data >> indexShift & indexMask)
	if data&StartBit != 0 {
		r.words = r.words[:0]
	}
	if int(index) != len(r.words) {
		r.words = r.words[:0]
		return 0, 0, nil, false, ErrSequence
	}
	if len(r.words) == MaxWords {
		r.words = r.words[:0]
		return 0, 0, nil, false, ErrLength
	}
	r.words = append(r.words, uint16(data&dataMask))
	if data&EndBit == 0 {
		return 0, 0, nil, false, nil
	}

	head := r.words[0]
	rest = append([]uint16(nil), r.words[1:]...)
	r.words = r.words[:0]
	return uint8(head >> 8), uint8(head), rest, true, nil
}
