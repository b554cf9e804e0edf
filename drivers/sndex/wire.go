package sndex

import "fmt"

// Command identifies a request on the SNDEX tag. The peer echoes it in its
// reply.
type Command uint8

const (
	CmdGetMute         Command = 0x01
	CmdGetFrequency    Command = 0x02
	CmdGetDSPMixRate   Command = 0x03
	CmdGetVolume       Command = 0x04
	CmdGetDevice       Command = 0x05
	CmdSetMute         Command = 0x81
	CmdSetFrequency    Command = 0x82
	CmdSetDSPMixRate   Command = 0x83
	CmdSetVolume       Command = 0x84
	CmdSetDevice       Command = 0x85
	CmdSetIirTarget    Command = 0x86
	CmdSetIirN0        Command = 0x87
	CmdSetIirN1        Command = 0x88
	CmdSetIirN2        Command = 0x89
	CmdSetIirD1        Command = 0x8a
	CmdSetIirD2        Command = 0x8b
	CmdSetIir          Command = 0x8c
	CmdPressVolSwitch  Command = 0xa0
	CmdHPConnect       Command = 0xa1
	CmdPreProcShutter  Command = 0xa2
	CmdPostProcShutter Command = 0xa3
)

var commandNames = map[Command]string{
	CmdGetMute:         "get-mute",
	CmdGetFrequency:    "get-frequency",
	CmdGetDSPMixRate:   "get-dsp-mix-rate",
	CmdGetVolume:       "get-volume",
	CmdGetDevice:       "get-device",
	CmdSetMute:         "set-mute",
	CmdSetFrequency:    "set-frequency",
	CmdSetDSPMixRate:   "set-dsp-mix-rate",
	CmdSetVolume:       "set-volume",
	CmdSetDevice:       "set-device",
	CmdSetIirTarget:    "set-iir-target",
	CmdSetIirN0:        "set-iir-n0",
	CmdSetIirN1:        "set-iir-n1",
	CmdSetIirN2:        "set-iir-n2",
	CmdSetIirD1:        "set-iir-d1",
	CmdSetIirD2:        "set-iir-d2",
	CmdSetIir:          "set-iir",
	CmdPressVolSwitch:  "press-volume-switch",
	CmdHPConnect:       "hp-connect",
	CmdPreProcShutter:  "pre-proc-shutter",
	CmdPostProcShutter: "post-proc-shutter",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("cmd(0x%02x)", uint8(c))
}

// PxiResult is the result code in a reply from the peer.
type PxiResult uint8

const (
	PxiSuccess PxiResult = iota
	PxiInvalidCommand
	PxiInvalidParam
	PxiExclusive
	PxiIllegalState
	PxiDeviceError
)

// Words on the SNDEX tag carry the command in bits 16-23, the result in bits
// 8-15 and the parameter in bits 0-7. Requests of the IIR sequence use bits
// 0-15 for a 16-bit parameter instead.
const (
	commandShift = 16
	resultShift  = 8

	paramMask    = 0xff
	paramMaskIir = 0xffff
)

// Volume parameters carry the value in bits 0-4.
const (
	VolumeValueMask  = 0x1f
	VolumeKeep       = 1 << 6 // Get the volume kept for restore
	VolumeEightLevel = 1 << 7 // Value is in 8 level scale
)

// Pack encodes a word. param is truncated to 8 bits unless result is
// PxiSuccess.
func Pack(cmd Command, result PxiResult, param uint16) uint32 {
	mask := uint32(paramMaskIir)
	if result != PxiSuccess {
		mask = paramMask
	}
	return uint32(cmd)<<commandShift | uint32(result)<<resultShift | uint32(param)&mask
}

// Unpack decodes a reply.
func Unpack(data uint32) (cmd Command, result PxiResult, param uint8) {
	return Command(data >> commandShift), PxiResult(data >> resultShift), uint8(data & paramMask)
}

// UnpackRequest decodes a request, whose parameter may be 16 bits wide.
func UnpackRequest(data uint32) (cmd Command, param uint16) {
	return Command(data >> commandShift), uint16(data & paramMaskIir)
}
