// Package lba implements the bit-exact 32-bit LBA command encoding that
// multiplexes opcode, subtype, sub-subtype, session id, instance type, and
// channel direction into a synthetic block address (spec.md §4.1).
//
// Encode/Decode are pure and allocation-free: no I/O, no global state.
package lba

import "github.com/netint/go-xcoder/internal/constants"

// Op enumerates every command opcode the accelerator recognizes.
type Op uint8

const (
	OpOpenSession Op = iota
	OpCloseSession
	OpKeepAlive
	OpKeepAliveTimeoutSet
	OpSWVersionAnnounce
	OpQueryStreamInfo
	OpQueryInstanceBufInfo
	OpQuerySessionStats
	OpQueryEOS
	OpQueryNetworkLayerSize
	OpQueryNetworkLayer
	OpSetSOS
	OpSetEOS
	OpSetWriteLen
	OpSetEncoderParams
	OpSetDecoderParams
	OpSetScalerParams
	OpSetAIParams
	OpSetSequenceChange
	OpScalerAllocFrame
	OpAIAllocFrame
	OpReadInstance
	OpWriteInstance
	OpClearInstanceBuf
	OpIdentifyDevice
	OpSetReadConfig
	OpSetWriteConfig

	opCount // sentinel; keep last
)

var opNames = [opCount]string{
	OpOpenSession:           "open-session",
	OpCloseSession:          "close-session",
	OpKeepAlive:             "keep-alive",
	OpKeepAliveTimeoutSet:   "keep-alive-timeout-set",
	OpSWVersionAnnounce:     "sw-version-announce",
	OpQueryStreamInfo:       "query-stream-info",
	OpQueryInstanceBufInfo:  "query-instance-buf-info",
	OpQuerySessionStats:     "query-session-stats",
	OpQueryEOS:              "query-eos",
	OpQueryNetworkLayerSize: "query-network-layer-size",
	OpQueryNetworkLayer:     "query-network-layer",
	OpSetSOS:                "set-sos",
	OpSetEOS:                "set-eos",
	OpSetWriteLen:           "set-write-len",
	OpSetEncoderParams:      "set-encoder-params",
	OpSetDecoderParams:      "set-decoder-params",
	OpSetScalerParams:       "set-scaler-params",
	OpSetAIParams:           "set-ai-params",
	OpSetSequenceChange:     "set-sequence-change",
	OpScalerAllocFrame:      "scaler-alloc-frame",
	OpAIAllocFrame:          "ai-alloc-frame",
	OpReadInstance:          "read-instance",
	OpWriteInstance:         "write-instance",
	OpClearInstanceBuf:      "clear-instance-buf",
	OpIdentifyDevice:        "identify-device",
	OpSetReadConfig:         "set-read-config",
	OpSetWriteConfig:        "set-write-config",
}

// String returns the op's well-known name, or "op(unknown)" for an unrecognized value.
func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "op(unknown)"
}

// Subtype distinguishes variants of query-instance-buf-info (spec.md §4.1).
type Subtype uint8

const (
	SubtypeNone Subtype = iota
	SubtypeBufInfoRead
	SubtypeBufInfoWrite
	SubtypeBufInfoReadBusy
	SubtypeBufInfoWriteBusy
	SubtypeBufInfoUpload
	SubtypeBufInfoAcquire
)

// Direction selects which of the three 128 MiB windows an LBA falls in.
type Direction uint8

const (
	DirControl Direction = iota
	DirReadData
	DirWriteData
)

func (d Direction) windowBase() uint32 {
	switch d {
	case DirReadData:
		return constants.ReadDataWindowLBA
	case DirWriteData:
		return constants.WriteDataWindowLBA
	default:
		return constants.ControlWindowLBA
	}
}

// Bit layout (spec.md §4.1):
//
//	bits [31:26]  hw_channel        (6 bits)
//	bits [25:19]  session_id        (7 bits; 0x7F = unassigned)
//	bit  [18]     instance_type
//	bits [17:8]   opcode region base (10 bits: 3-bit window selector | 7-bit op index)
//	bits  [7:4]   subtype
//	bits  [3:0]   sub-subtype
const (
	hwChannelShift  = 26
	hwChannelMask   = 0x3F
	sessionIDShift  = 19
	sessionIDMask   = 0x7F
	instanceShift   = 18
	instanceMask    = 0x1
	regionShift     = 8
	regionMask      = 0x3FF
	subtypeShift    = 4
	subtypeMask     = 0xF
	subsubtypeShift = 0
	subsubtypeMask  = 0xF

	windowSelShift = 7
	windowSelMask  = 0x7
	opIndexMask    = 0x7F
)

// Fields is the full decoded tuple an LBA carries.
type Fields struct {
	HWChannel    uint8
	SessionID    uint16
	InstanceType uint8
	Direction    Direction
	Op           Op
	Subtype      Subtype
	Subsubtype   uint8
}

// Encode packs f into a 32-bit LBA. The window base for f.Direction is
// folded into the opcode-region-base field so that Decode can recover it;
// Encode itself never issues I/O and never allocates.
func Encode(f Fields) uint32 {
	region := (uint32(f.Direction)&windowSelMask)<<windowSelShift | (uint32(f.Op) & opIndexMask)

	return uint32(f.HWChannel&hwChannelMask)<<hwChannelShift |
		uint32(f.SessionID&sessionIDMask)<<sessionIDShift |
		uint32(f.InstanceType&instanceMask)<<instanceShift |
		(region&regionMask)<<regionShift |
		uint32(f.Subtype&subtypeMask)<<subtypeShift |
		uint32(f.Subsubtype&subsubtypeMask)<<subsubtypeShift
}

// Decode reverses Encode. It is used only for diagnostic logging of a
// failed LBA (spec.md §4.1) and by tests asserting the roundtrip invariant.
func Decode(addr uint32) Fields {
	region := (addr >> regionShift) & regionMask
	return Fields{
		HWChannel:    uint8((addr >> hwChannelShift) & hwChannelMask),
		SessionID:    uint16((addr >> sessionIDShift) & sessionIDMask),
		InstanceType: uint8((addr >> instanceShift) & instanceMask),
		Direction:    Direction((region >> windowSelShift) & windowSelMask),
		Op:           Op(region & opIndexMask),
		Subtype:      Subtype((addr >> subtypeShift) & subtypeMask),
		Subsubtype:   uint8((addr >> subsubtypeShift) & subsubtypeMask),
	}
}

// AbsoluteLBA is Encode(f) offset into the window f.Direction selects, so
// that the returned value is a real LBA the block device can be asked to
// read or write (the generic bitfield encoding above is window-relative by
// construction; window selection needs no separate addition since it is
// already folded into the region field, but callers of Construct* below get
// the window base applied explicitly for clarity and to keep Encode pure
// and allocation-free per spec.md §4.1).
func AbsoluteLBA(f Fields) uint32 {
	return f.Direction.windowBase() + Encode(f)
}

// Well-known constructors (spec.md §4.1). Each pins Direction/Op/Subtype so
// callers cannot mismatch them.

func OpenSession(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpOpenSession, Direction: DirControl})
}

func CloseSession(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpCloseSession, Direction: DirControl})
}

func KeepAlive(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpKeepAlive, Direction: DirControl})
}

func KeepAliveTimeoutSet(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpKeepAliveTimeoutSet, Direction: DirWriteData})
}

func SWVersionAnnounce(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSWVersionAnnounce, Direction: DirWriteData})
}

func QueryStreamInfo(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQueryStreamInfo, Direction: DirReadData})
}

func QueryInstanceBufInfo(sessionID uint16, hwChannel uint8, sub Subtype) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQueryInstanceBufInfo, Subtype: sub, Direction: DirReadData})
}

func QuerySessionStats(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQuerySessionStats, Direction: DirReadData})
}

func QueryEOS(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQueryEOS, Direction: DirReadData})
}

func QueryNetworkLayerSize(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQueryNetworkLayerSize, Direction: DirReadData})
}

func QueryNetworkLayer(sessionID uint16, hwChannel uint8, layerIndex uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpQueryNetworkLayer, Subsubtype: layerIndex & 0xF, Direction: DirReadData})
}

func SetSOS(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetSOS, Direction: DirWriteData})
}

func SetEOS(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetEOS, Direction: DirWriteData})
}

func SetWriteLen(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetWriteLen, Direction: DirWriteData})
}

func SetEncoderParams(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetEncoderParams, Direction: DirWriteData})
}

func SetDecoderParams(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetDecoderParams, Direction: DirWriteData})
}

func SetScalerParams(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetScalerParams, Direction: DirWriteData})
}

func SetAIParams(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetAIParams, Direction: DirWriteData})
}

func SetSequenceChange(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetSequenceChange, Direction: DirWriteData})
}

func ScalerAllocFrame(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpScalerAllocFrame, Direction: DirWriteData})
}

func AIAllocFrame(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpAIAllocFrame, Direction: DirWriteData})
}

func ReadInstance(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpReadInstance, Direction: DirReadData})
}

func WriteInstance(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpWriteInstance, Direction: DirWriteData})
}

// ClearInstanceBuf is keyed on frame_index alone, not on a session
// (spec.md §3, §4.8). The session_id field carries no session here, so
// its 7 bits are repurposed together with subtype/sub-subtype to carry
// the full frame_index (15 bits, 0-32767): session_id gets bits
// [14:8], subtype bits [7:4], sub-subtype bits [3:0]. 4 bits alone
// alias every 16th index (e.g. frame_index 17 and 1), corrupting the
// wrong buffer's clear.
func ClearInstanceBuf(frameIndex uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{
		HWChannel:  hwChannel,
		SessionID:  (frameIndex >> 8) & sessionIDMask,
		Op:         OpClearInstanceBuf,
		Subtype:    Subtype((frameIndex >> 4) & 0xF),
		Subsubtype: uint8(frameIndex & 0xF),
		Direction:  DirWriteData,
	})
}

func SetReadConfig(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetReadConfig, Direction: DirWriteData})
}

func SetWriteConfig(sessionID uint16, hwChannel uint8) uint32 {
	return AbsoluteLBA(Fields{HWChannel: hwChannel, SessionID: sessionID, Op: OpSetWriteConfig, Direction: DirWriteData})
}

// IdentifyLBA is the fixed, literal address of the identify command
// (spec.md §6): "the control window begins at LBA 512 MiB / 4096 = 0x20000
// ... the identify command reads from LBA 0x20000 + (0xD7-0xD0) x 256 + 1 x 16."
// This is a single well-known constant, not derived from the generic
// opcode encoder above.
const IdentifyLBA = constants.ControlWindowLBA + (0xD7-0xD0)*256 + 1*16
