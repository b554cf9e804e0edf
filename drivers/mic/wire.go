package mic

import "fmt"

// Command identifies a request on the MIC tag.
type Command uint8

const (
	CmdSampling   Command = 0x40
	CmdAutoOn     Command = 0x41
	CmdAutoOff    Command = 0x42
	CmdAutoAdjust Command = 0x43

	// Limited sampling runs on the codec of the TWL at one of its fixed
	// rates.
	CmdLimitedOn     Command = 0x44
	CmdLimitedOff    Command = 0x45
	CmdLimitedAdjust Command = 0x46

	// CmdBufferFull is sent by the peer when a non-looping auto sampling
	// has filled its buffer.
	CmdBufferFull Command = 0x51
)

func (c Command) String() string {
	switch c {
	case CmdSampling:
		return "sampling"
	case CmdAutoOn:
		return "auto-on"
	case CmdAutoOff:
		return "auto-off"
	case CmdAutoAdjust:
		return "auto-adjust"
	case CmdLimitedOn:
		return "limited-on"
	case CmdLimitedOff:
		return "limited-off"
	case CmdLimitedAdjust:
		return "limited-adjust"
	case CmdBufferFull:
		return "buffer-full"
	}
	return fmt.Sprintf("cmd(0x%02x)", uint8(c))
}

// Flags of the sampling type argument. The lower two bits select the sample
// format.
const (
	Flag8Bit      = 0x00
	Flag12Bit     = 0x01
	FlagSigned8   = 0x02
	FlagSigned12  = 0x03
	FlagLoop      = 0x10
	FlagCorrect   = 0x20
	FlagFilterOff = 0x40

	FormatMask = 0x03
)

// flags returns the sampling type argument for t.
func (t SamplingType) flags() (uint8, bool) {
	switch t {
	case Bit8:
		return Flag8Bit, true
	case Bit12:
		return Flag12Bit, true
	case Signed8:
		return FlagSigned8, true
	case Signed12:
		return FlagSigned12, true
	case Bit12FilterOff:
		return Flag12Bit | FlagFilterOff, true
	case Signed12FilterOff:
		return FlagSigned12 | FlagFilterOff, true
	}
	return 0, false
}

// SampleSize returns the bytes per sample for the format in flags.
func SampleSize(flags uint8) uint32 {
	if flags&FormatMask == Flag8Bit || flags&FormatMask == FlagSigned8 {
		return 1
	}
	return 2
}
