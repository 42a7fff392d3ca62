package sei

// EntryType is the closed set of SEI payload types this driver acts
// on (spec.md §4.7). Any other value is logged and skipped.
type EntryType uint8

const (
	EntryTypeUserDataRegistered   EntryType = 4
	EntryTypeUserDataUnregistered EntryType = 5
	EntryTypeMasteringDisplay     EntryType = 137
	EntryTypeContentLightLevel    EntryType = 144
)

// entryHeaderSize is the fixed 4-byte header preceding each SEI
// entry's payload: (type, size, status, reserved).
const entryHeaderSize = 4

// Entry is one raw SEI table entry as read from the accelerator.
type Entry struct {
	Type    EntryType
	Size    uint8
	Status  uint8
	Payload []byte
}

var hdr10PlusMagic = []byte{0x00, 0x3C, 0x00, 0x01, 0x04, 0x00}
var cea608Magic = []byte{0xB5, 0x00, 0x31, 0x47, 0x41, 0x39, 0x34}

const cea608HeaderLen = 10

// Metadata collects the recognized SEI content pulled out of a
// frame's entry table, as offset+length spans into the originating
// SEI byte area so callers can slice without copying (spec.md §4.7:
// "Record offset+len").
type Metadata struct {
	HDR10Plus         Span
	CEA608            Span
	UserDataUnreg     Span
	MasteringDisplay  Span
	ContentLightLevel Span
	Unrecognized      []EntryType
}

// Span is a byte range recorded relative to the start of the SEI byte
// area (the buffer ParseEntries was called on).
type Span struct {
	Present bool
	Offset  int
	Length  int
}

// Classify interprets a parsed entry table per spec.md §4.7's
// detection rules. entryOffsets gives each entry's payload start
// offset within the original SEI byte area, as returned by
// ParseEntries.
func Classify(entries []Entry, entryOffsets []int) Metadata {
	var md Metadata
	for i, e := range entries {
		base := entryOffsets[i]
		switch e.Type {
		case EntryTypeUserDataRegistered:
			if hasPrefix(e.Payload, hdr10PlusMagic) {
				md.HDR10Plus = Span{Present: true, Offset: base, Length: len(e.Payload)}
			} else if hasPrefix(e.Payload, cea608Magic) && len(e.Payload) > cea608HeaderLen {
				countByte := e.Payload[cea608HeaderLen-1]
				length := int(countByte&0x1F) * 3
				md.CEA608 = Span{Present: true, Offset: base + cea608HeaderLen, Length: length}
			}
		case EntryTypeUserDataUnregistered:
			md.UserDataUnreg = Span{Present: true, Offset: base, Length: len(e.Payload)}
		case EntryTypeMasteringDisplay:
			md.MasteringDisplay = Span{Present: true, Offset: base, Length: len(e.Payload)}
		case EntryTypeContentLightLevel:
			md.ContentLightLevel = Span{Present: true, Offset: base, Length: len(e.Payload)}
		default:
			md.Unrecognized = append(md.Unrecognized, e.Type)
		}
	}
	return md
}

// ParseEntries walks count fixed-header entries out of buf, returning
// the raw entries in encounter order alongside each entry's payload
// start offset within buf (for Classify). It does not interpret
// payload content itself.
func ParseEntries(buf []byte, count int) ([]Entry, []int, error) {
	entries := make([]Entry, 0, count)
	offsets := make([]int, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if off+entryHeaderSize > len(buf) {
			return nil, nil, ErrShortBuffer
		}
		typ := EntryType(buf[off])
		size := buf[off+1]
		status := buf[off+2]
		off += entryHeaderSize

		if off+int(size) > len(buf) {
			return nil, nil, ErrShortBuffer
		}
		offsets = append(offsets, off)
		entries = append(entries, Entry{Type: typ, Size: size, Status: status, Payload: buf[off : off+int(size)]})
		off += int(size)
	}
	return entries, offsets, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
