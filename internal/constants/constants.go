// Package constants holds protocol-level constants shared across the
// driver: page size, LBA region geometry, session limits, and timing.
package constants

import "time"

// Page and region geometry (spec.md §4.1, §6).
const (
	// PageSize is the unit every block I/O is rounded up to.
	PageSize = 4096

	// LBABitOffset converts an LBA to a byte offset: offset = lba << LBABitOffset.
	LBABitOffset = 12 // log2(PageSize)

	// PrologueBytes is the reserved region preceding the control window.
	PrologueBytes = 512 << 20 // 512 MiB

	// ControlWindowLBA is the first LBA of the 128 MiB control (opcode) window.
	ControlWindowLBA = PrologueBytes / PageSize // 0x20000

	// WindowBytes is the size of each of the control/read-data/write-data windows.
	WindowBytes = 128 << 20

	// ReadDataWindowLBA is the first LBA of the 128 MiB read-data window.
	ReadDataWindowLBA = ControlWindowLBA + WindowBytes/PageSize

	// WriteDataWindowLBA is the first LBA of the 128 MiB write-data window.
	WriteDataWindowLBA = ReadDataWindowLBA + WindowBytes/PageSize
)

// Session limits (spec.md §3, §4.3).
const (
	// InvalidSessionID is the sentinel marking a closed/never-opened context.
	InvalidSessionID = 0xFFFF

	// UnassignedSessionID is the 7-bit LBA-field sentinel for "no session".
	UnassignedSessionID = 0x7F

	// XcoderFailuresMax is the error-count threshold past which a session
	// is declared fatally, persistently broken (spec.md §4.3).
	XcoderFailuresMax = 25

	// BitstreamRingSize is the bitstream ring capacity N (power of two).
	BitstreamRingSize = 1024

	// SessionCloseRetryMax bounds the close-session retry loop.
	SessionCloseRetryMax = 5

	// MinKeepAliveTimeout is the minimum caller-supplied keep-alive timeout.
	MinKeepAliveTimeout = 1 * time.Second

	// DefaultKeepAliveTimeout is used when a caller opens a session
	// without specifying one.
	DefaultKeepAliveTimeout = 10 * time.Second

	// NMaxSEIData bounds the SEI payload area of the per-frame metadata trailer.
	NMaxSEIData = 2048

	// NMaxOutputs is the maximum number of HW-frame sub-descriptors a single
	// decoder/scaler read can yield.
	NMaxOutputs = 3

	// MetadataTrailerSize64 is the current-generation (firmware >= 6.1) base
	// trailer size; MetadataTrailerSize32 is the legacy (<=6.1) size.
	MetadataTrailerSize64 = 48
	MetadataTrailerSize32 = 32

	// MinFirmwareSWVersionAnnounce is the first firmware branch requiring the
	// SW-version-announce handshake at open.
	MinFirmwareSWVersionAnnounce = 61 // 6.1, encoded as major*10+minor

	// MinFirmwareScalerStackMode is the first firmware supporting scaler
	// "stack" blit mode.
	MinFirmwareScalerStackMode = 64
)

// Polling/backoff constants (spec.md §4.5.1).
const (
	// ReadPollBackoff is the sleep between read-buffer-available polls
	// outside low-delay mode.
	ReadPollBackoff = 100 * time.Microsecond

	// ReadPollMaxIterations bounds the non-low-delay poll loop.
	ReadPollMaxIterations = 1000

	// WriteBufferGrowRetryMax bounds the write-buffer-available retry loop
	// in Decoder.Write before WriteBufferFull is returned.
	WriteBufferGrowRetryMax = 8
)

// HWFrameAlignment is the byte alignment AI tensor layer offsets are sized to.
const HWFrameAlignment = 64

// Encoder parameter bounds (spec.md §4.9). Representative device limits; not
// given numerically in spec.md, taken from the accelerator's typical
// operating envelope.
const (
	XcoderMinEncPicWidth  = 144
	XcoderMaxEncPicWidth  = 8192
	XcoderMinEncPicHeight = 128
	XcoderMaxEncPicHeight = 8192

	MaxFramerate = 240

	MinBitrate = 1000        // 1 kbps
	MaxBitrate = 700_000_000 // 700 Mbps

	// AV1 level is either auto (0) or clamped to this range.
	AV1MinLevel = 20
	AV1MaxLevel = 51

	// GOP presets that select low-delay structure (spec.md §4.9: "2-pass
	// ... forbids low-delay GOPs (preset 1/3/7/9)").
)

// LowDelayGOPPresets is the closed set of GOP presets considered
// low-delay for the 2-pass/maxFrameSize rules.
var LowDelayGOPPresets = map[int]bool{1: true, 3: true, 7: true, 9: true}

// NETINTPCIVendorID is the PCI vendor id the identify payload must report
// (twice: VID and SSVID).
const NETINTPCIVendorID = 0x1D82
