package sei

// Codec selects the NAL unit header layout used when emitting an SEI
// NAL unit (spec.md §4.7: "SEI NAL unit headers specific to H.264 vs
// H.265 (one-byte vs two-byte NAL header)").
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// nalHeader returns the SEI NAL unit header bytes for the codec: a
// single byte for H.264 (nal_unit_type=6, SEI), two bytes for H.265
// (nal_unit_type=39, PREFIX_SEI_NUT).
func nalHeader(codec Codec) []byte {
	switch codec {
	case CodecH265:
		return []byte{0x4E, 0x01}
	default:
		return []byte{0x06}
	}
}

// sizeExtension encodes an SEI payload-type or payload-size field
// using the standard repeated-0xFF extension: while the remaining
// value is >= 255, emit 0xFF and subtract 255; then emit the final
// byte (spec.md §4.7: "payload-size extension (repeated 0xFF bytes
// when size >= 255)").
func sizeExtension(v int) []byte {
	var out []byte
	for v >= 255 {
		out = append(out, 0xFF)
		v -= 255
	}
	out = append(out, byte(v))
	return out
}

// Emit builds one SEI NAL unit containing the given entries, in the
// inverse byte layout of ParseEntries/Classify: start code, NAL
// header, then for each entry a payload-type field, a payload-size
// field, and the raw payload bytes, followed by the RBSP trailing
// byte 0x80. Emulation-prevention bytes are inserted over the whole
// RBSP body (everything after the NAL header).
func Emit(entries []Entry, codec Codec) []byte {
	var rbsp []byte
	for _, e := range entries {
		rbsp = append(rbsp, sizeExtension(int(e.Type))...)
		rbsp = append(rbsp, sizeExtension(len(e.Payload))...)
		rbsp = append(rbsp, e.Payload...)
	}
	rbsp = append(rbsp, 0x80)

	out := make([]byte, 0, len(startCode)+2+len(rbsp)+len(rbsp)/2)
	out = append(out, startCode...)
	out = append(out, nalHeader(codec)...)
	out = append(out, InsertEmulationPrevention(rbsp)...)
	return out
}

// InsertEmulationPrevention converts an RBSP byte stream to EBSP: a
// 0x03 byte is inserted after any run of two consecutive 0x00 bytes
// that is followed by a 0x00, 0x01, 0x02, or 0x03 byte (spec.md
// §4.7). The worst case expansion is 1.5x (every third byte needs an
// escape), matching the spec's buffer pre-sizing note.
func InsertEmulationPrevention(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/2)
	zeroRun := 0
	for _, b := range rbsp {
		if zeroRun >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeroRun = 0
		}
		out = append(out, b)
		if b == 0x00 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}

// RemoveEmulationPrevention converts an EBSP byte stream back to
// RBSP: any 0x03 byte immediately following two consecutive 0x00
// bytes is dropped.
func RemoveEmulationPrevention(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeroRun := 0
	for _, b := range ebsp {
		if zeroRun >= 2 && b == 0x03 {
			zeroRun = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}
