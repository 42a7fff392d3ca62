// Package sei parses the per-frame metadata trailer and SEI entry
// table a decoder session reads alongside each frame, and emits the
// inverse NAL-encoded SEI messages an encoder session writes
// alongside each input frame (spec.md §4.7, C8).
package sei

import (
	"encoding/binary"
	"errors"

	"github.com/netint/go-xcoder/internal/constants"
)

// ErrShortBuffer is returned when a payload is too small to contain
// the structure being parsed.
var ErrShortBuffer = errors.New("sei: buffer too short")

// CropRect is the crop window reported in the per-frame trailer.
type CropRect struct {
	Left, Top, Right, Bottom uint16
}

// Trailer is the fixed-size per-frame metadata header (spec.md §4.7,
// §6): crop rect, decoded frame geometry, picture type, the
// cumulative byte offset used to recover PTS via the bitstream ring,
// and the SEI entry table's size.
type Trailer struct {
	Crop            CropRect
	FrameWidth      uint16
	FrameHeight     uint16
	PictType        uint8
	FrameOffset     uint32
	SEIHeaderBitmap uint32
	SEICount        uint16
	SEIBytesCount   uint32
}

// trailerFixedSize is the byte layout preceding the variable-length
// HW-frame descriptors and SEI byte area.
const trailerFixedSize = 8 /*crop*/ + 2 + 2 + 1 + 3 /*pad*/ + 4 + 4 + 2 + 2 /*pad*/ + 4

// ParseTrailer decodes the fixed trailer. legacy selects the firmware
// <= 6.1 32-byte layout vs the current 48-byte layout (spec.md §6);
// both encode the same fields here, the legacy layout simply omits
// the reserved padding the current layout carries.
func ParseTrailer(buf []byte, legacy bool) (Trailer, error) {
	size := constants.MetadataTrailerSize64
	if legacy {
		size = constants.MetadataTrailerSize32
	}
	if len(buf) < size || len(buf) < trailerFixedSize {
		return Trailer{}, ErrShortBuffer
	}
	be := binary.BigEndian
	var tr Trailer
	tr.Crop.Left = be.Uint16(buf[0:2])
	tr.Crop.Top = be.Uint16(buf[2:4])
	tr.Crop.Right = be.Uint16(buf[4:6])
	tr.Crop.Bottom = be.Uint16(buf[6:8])
	tr.FrameWidth = be.Uint16(buf[8:10])
	tr.FrameHeight = be.Uint16(buf[10:12])
	tr.PictType = buf[12]
	tr.FrameOffset = be.Uint32(buf[16:20])
	tr.SEIHeaderBitmap = be.Uint32(buf[20:24])
	tr.SEICount = be.Uint16(buf[24:26])
	tr.SEIBytesCount = be.Uint32(buf[28:32])
	return tr, nil
}
