package sei

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildEntry(typ EntryType, payload []byte) []byte {
	buf := []byte{byte(typ), byte(len(payload)), 0, 0}
	return append(buf, payload...)
}

func TestParseTrailer(t *testing.T) {
	buf := make([]byte, 48)
	be := binary.BigEndian
	be.PutUint16(buf[0:2], 1)
	be.PutUint16(buf[8:10], 1920)
	be.PutUint16(buf[10:12], 1080)
	buf[12] = 1
	be.PutUint32(buf[16:20], 0xABCD)
	be.PutUint16(buf[24:26], 2)
	be.PutUint32(buf[28:32], 64)

	tr, err := ParseTrailer(buf, false)
	require.NoError(t, err)
	require.Equal(t, uint16(1920), tr.FrameWidth)
	require.Equal(t, uint16(1080), tr.FrameHeight)
	require.Equal(t, uint32(0xABCD), tr.FrameOffset)
	require.Equal(t, uint16(2), tr.SEICount)
}

func TestParseTrailerShortBuffer(t *testing.T) {
	_, err := ParseTrailer(make([]byte, 10), false)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestParseEntriesAndClassify(t *testing.T) {
	hdr10 := append(append([]byte{}, hdr10PlusMagic...), []byte{0xAA, 0xBB}...)
	var buf []byte
	buf = append(buf, buildEntry(EntryTypeUserDataRegistered, hdr10)...)
	buf = append(buf, buildEntry(EntryTypeUserDataUnregistered, []byte("hello"))...)
	buf = append(buf, buildEntry(200, []byte{0x01})...) // unrecognized

	entries, offsets, err := ParseEntries(buf, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	md := Classify(entries, offsets)
	require.True(t, md.HDR10Plus.Present)
	require.True(t, md.UserDataUnreg.Present)
	require.Equal(t, []EntryType{200}, md.Unrecognized)
}

func TestParseEntriesCEA608(t *testing.T) {
	payload := append(append([]byte{}, cea608Magic...), []byte{0, 0, 0x05}...) // countByte=0x05
	payload = append(payload, []byte{1, 2, 3, 4, 5}...)                       // 0x05*3=15 bytes of caption data
	for len(payload) < len(cea608Magic)+3+15 {
		payload = append(payload, 0)
	}
	buf := buildEntry(EntryTypeUserDataRegistered, payload)

	entries, offsets, err := ParseEntries(buf, 1)
	require.NoError(t, err)
	md := Classify(entries, offsets)
	require.True(t, md.CEA608.Present)
	require.Equal(t, 15, md.CEA608.Length)
}

func TestParseEntriesShortBuffer(t *testing.T) {
	_, _, err := ParseEntries([]byte{0, 10}, 1)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestEmulationPreventionRoundtrip(t *testing.T) {
	cases := [][]byte{
		{0x00, 0x00, 0x00, 0x01},
		{0x00, 0x00, 0x01, 0x00, 0x00, 0x02},
		{0x01, 0x02, 0x03},
		{0x00, 0x00, 0x00, 0x00, 0x00},
	}
	for _, c := range cases {
		inserted := InsertEmulationPrevention(c)
		removed := RemoveEmulationPrevention(inserted)
		require.Equal(t, c, removed)
	}
}

func TestEmitProducesValidNAL(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeUserDataUnregistered, Payload: []byte("abc")},
	}
	out := Emit(entries, CodecH264)
	require.Equal(t, startCode, out[:4])
	require.Equal(t, byte(0x06), out[4])
}

func TestSizeExtension(t *testing.T) {
	require.Equal(t, []byte{0x05}, sizeExtension(5))
	require.Equal(t, []byte{0xFF, 0x00}, sizeExtension(255))
	require.Equal(t, []byte{0xFF, 0xFF, 0x0A}, sizeExtension(520))
}
