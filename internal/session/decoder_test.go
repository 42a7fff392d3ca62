package session

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netint/go-xcoder/internal/block/mockdevice"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/status"
	"github.com/netint/go-xcoder/internal/validate"
)

const testSessionID = 7
const testHWChannel = 0

// seedOKStats installs a fixed, always-OK query-session-stats
// response so every ExecCommand/ExecRead pairing in a test classifies
// clean without needing per-call bookkeeping.
func seedOKStats(dev *mockdevice.Device) {
	buf := make([]byte, constants.PageSize)
	binary.BigEndian.PutUint16(buf[0:2], testSessionID)
	binary.BigEndian.PutUint64(buf[22:30], 100) // session_timestamp
	addr := lba.QuerySessionStats(testSessionID, testHWChannel)
	dev.Seed(addr, buf)
}

func bufInfoHandler(available int) mockdevice.Handler {
	return mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			buf := make([]byte, n)
			binary.BigEndian.PutUint32(buf[0:4], uint32(available))
			return buf, nil
		},
	}
}

func newTestDecoder(t *testing.T, params validate.DecoderParams) (*Decoder, *mockdevice.Device) {
	t.Helper()
	dev := mockdevice.New()
	seedOKStats(dev)

	writeBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoWrite)
	dev.Handle(writeBufAddr, bufInfoHandler(1<<20))

	d, err := OpenDecoder(dev, testSessionID, testHWChannel, time.Second, params, false, 0, status.Identify{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateConfigured, d.State())
	return d, dev
}

func TestOpenDecoderConfigures(t *testing.T) {
	d, _ := newTestDecoder(t, validate.DecoderParams{Width: 1920, Height: 1080})
	require.Equal(t, uint16(testSessionID), d.SessionID())
}

func TestDecoderWriteThenReadRecoversPTS(t *testing.T) {
	d, dev := newTestDecoder(t, validate.DecoderParams{Width: 1920, Height: 1080})

	pkt := Packet{Data: []byte("compressed-bitstream-packet"), PTS: 1000, DTS: 900, StartOfStream: true}
	require.NoError(t, d.Write(pkt))

	writeAddr := lba.WriteInstance(testSessionID, testHWChannel)
	stored, ok := dev.StoredAt(writeAddr)
	require.True(t, ok)
	require.Contains(t, string(stored), "compressed-bitstream-packet")

	decodedFrame := []byte("decoded-picture-bytes")
	trailerSize := constants.MetadataTrailerSize64
	available := trailerSize + len(decodedFrame)

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	dev.Handle(readBufAddr, bufInfoHandler(available))

	readAddr := lba.ReadInstance(testSessionID, testHWChannel)
	dev.Handle(readAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			raw := make([]byte, n)
			copy(raw, decodedFrame)
			trailer := buildTrailer(1920, 1080, 2, 0)
			copy(raw[n-trailerSize:], trailer)
			return raw, nil
		},
	})

	frame, err := d.Read()
	require.NoError(t, err)
	require.False(t, frame.SequenceChange)
	require.False(t, frame.EndOfStream)
	require.Equal(t, 1920, frame.Width)
	require.Equal(t, 1080, frame.Height)
	require.Equal(t, uint8(2), frame.PictType)
	require.Equal(t, int64(1000), frame.PTS)
	require.Equal(t, int64(900), frame.DTS)
}

func TestDecoderReadFallsBackToDTSDeltaOnRingMiss(t *testing.T) {
	d, dev := newTestDecoder(t, validate.DecoderParams{Width: 1920, Height: 1080})

	trailerSize := constants.MetadataTrailerSize64
	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	readAddr := lba.ReadInstance(testSessionID, testHWChannel)

	firstData := []byte("decoded-picture-bytes-one")
	firstPkt := Packet{Data: []byte("compressed-bitstream-packet-one"), PTS: 1000, DTS: 900, StartOfStream: true}
	require.NoError(t, d.Write(firstPkt))

	dev.Handle(readBufAddr, bufInfoHandler(trailerSize+len(firstData)))
	dev.Handle(readAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			raw := make([]byte, n)
			copy(raw, firstData)
			copy(raw[n-trailerSize:], buildTrailer(1920, 1080, 1, 0))
			return raw, nil
		},
	})

	first, err := d.Read()
	require.NoError(t, err)
	require.Equal(t, int64(1000), first.PTS)
	require.Equal(t, int64(900), first.DTS)

	secondData := []byte("decoded-picture-bytes-two")
	secondPkt := Packet{Data: []byte("compressed-bitstream-packet-two"), PTS: 1100, DTS: 1000}
	require.NoError(t, d.Write(secondPkt))

	dev.Handle(readBufAddr, bufInfoHandler(trailerSize+len(secondData)))
	dev.Handle(readAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			raw := make([]byte, n)
			copy(raw, secondData)
			// frame_offset deliberately outside every recorded ring
			// interval so the lookup misses and the dts-delta fallback
			// takes over.
			copy(raw[n-trailerSize:], buildTrailer(1920, 1080, 1, 999_999))
			return raw, nil
		},
	})

	second, err := d.Read()
	require.NoError(t, err)
	require.Equal(t, int64(1000), second.DTS)
	require.Equal(t, int64(1100), second.PTS)
}

func TestDecoderSequenceChange(t *testing.T) {
	d, dev := newTestDecoder(t, validate.DecoderParams{})

	trailerSize := constants.MetadataTrailerSize64
	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	dev.Handle(readBufAddr, bufInfoHandler(trailerSize))

	frame, err := d.Read()
	require.NoError(t, err)
	require.True(t, frame.SequenceChange)
}

func TestDecoderReadRetriesWhenEmptyLowDelay(t *testing.T) {
	d, dev := newTestDecoder(t, validate.DecoderParams{LowDelay: true})

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoReadBusy)
	dev.Handle(readBufAddr, bufInfoHandler(0))

	_, err := d.Read()
	require.ErrorIs(t, err, ErrRetry)
}

func TestDecoderDrainThenCloseReportsEndOfStream(t *testing.T) {
	d, dev := newTestDecoder(t, validate.DecoderParams{LowDelay: true})

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoReadBusy)
	dev.Handle(readBufAddr, bufInfoHandler(0))

	eosAddr := lba.QueryEOS(testSessionID, testHWChannel)
	dev.Handle(eosAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			buf := make([]byte, n)
			buf[0] = 1
			return buf, nil
		},
	})

	require.NoError(t, d.Drain())
	require.Equal(t, StateDraining, d.State())

	frame, err := d.Read()
	require.NoError(t, err)
	require.True(t, frame.EndOfStream)
	require.Equal(t, StateFlushed, d.State())

	require.NoError(t, d.Close())
}

func TestDecoderEnsureWriteBufferFull(t *testing.T) {
	dev := mockdevice.New()
	seedOKStats(dev)

	writeBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoWrite)
	dev.Handle(writeBufAddr, bufInfoHandler(10))

	d, err := OpenDecoder(dev, testSessionID, testHWChannel, time.Second, validate.DecoderParams{}, false, 0, status.Identify{}, nil)
	require.NoError(t, err)

	pkt := Packet{Data: make([]byte, 100)}
	err = d.Write(pkt)
	require.ErrorIs(t, err, ErrWriteBufferFull)
}

// buildTrailer constructs a minimal current-generation (48-byte)
// metadata trailer with the given geometry, picture type, and
// cumulative frame offset.
func buildTrailer(width, height uint16, pictType uint8, frameOffset uint32) []byte {
	buf := make([]byte, constants.MetadataTrailerSize64)
	be := binary.BigEndian
	be.PutUint16(buf[8:10], width)
	be.PutUint16(buf[10:12], height)
	buf[12] = pictType
	be.PutUint32(buf[16:20], frameOffset)
	return buf
}
