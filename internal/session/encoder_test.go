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

func baseEncoderParams() validate.EncoderParams {
	return validate.EncoderParams{
		BitDepth:     8,
		Width:        1920,
		Height:       1080,
		FrameRateNum: 30,
		FrameRateDen: 1,
		Bitrate:      2_000_000,
		GOPPreset:    1,
	}
}

func newTestEncoder(t *testing.T, params validate.EncoderParams, supportsSSIM bool) (*Encoder, *mockdevice.Device) {
	t.Helper()
	dev := mockdevice.New()
	seedOKStats(dev)

	writeBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoWrite)
	dev.Handle(writeBufAddr, bufInfoHandler(1<<20))

	e, err := OpenEncoder(dev, testSessionID, testHWChannel, time.Second, params, supportsSSIM, status.Identify{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateConfigured, e.State())
	return e, dev
}

func TestOpenEncoderRejectsInvalidParams(t *testing.T) {
	dev := mockdevice.New()
	seedOKStats(dev)
	params := baseEncoderParams()
	params.Width = 10 // below XcoderMinEncPicWidth
	_, err := OpenEncoder(dev, testSessionID, testHWChannel, time.Second, params, false, status.Identify{}, nil)
	require.Error(t, err)
}

// buildBstreamHeader constructs a ni_metadata_enc_bstream_t header:
// 32 bytes legacy, 64 bytes with SSIM when withSSIM is set.
func buildBstreamHeader(withSSIM bool, frameTstamp int64, frameType uint16, avgQP uint16, recycleIndex uint32, av1ShowFrame bool, metadataSize uint16, ssimY, ssimU, ssimV uint16) []byte {
	size := bstreamHeaderSizeLegacy
	if withSSIM {
		size = bstreamHeaderSizeFull
	}
	hdr := make([]byte, size)
	be := binary.BigEndian
	be.PutUint64(hdr[bstreamOffFrameTstamp:bstreamOffFrameTstamp+8], uint64(frameTstamp))
	be.PutUint16(hdr[bstreamOffFrameType:bstreamOffFrameType+2], frameType)
	be.PutUint16(hdr[bstreamOffAvgFrameQP:bstreamOffAvgFrameQP+2], avgQP)
	be.PutUint32(hdr[bstreamOffRecycleIndex:bstreamOffRecycleIndex+4], recycleIndex)
	if av1ShowFrame {
		hdr[bstreamOffAV1ShowFrame] = 1
	}
	be.PutUint16(hdr[bstreamOffMetadataSize:bstreamOffMetadataSize+2], metadataSize)
	if withSSIM {
		be.PutUint16(hdr[bstreamOffSSIMY:bstreamOffSSIMY+2], ssimY)
		be.PutUint16(hdr[bstreamOffSSIMU:bstreamOffSSIMU+2], ssimU)
		be.PutUint16(hdr[bstreamOffSSIMV:bstreamOffSSIMV+2], ssimV)
	}
	return hdr
}

func TestEncoderWriteThenReadRecoversMetadata(t *testing.T) {
	e, dev := newTestEncoder(t, baseEncoderParams(), true)

	frame := Frame{Data: make([]byte, 64), PTS: 500, ForceKeyFrame: true}
	require.NoError(t, e.Write(frame))

	payload := []byte("compressed-packet-bytes")
	hdr := buildBstreamHeader(true, 500, 1, 20, 3, true, uint16(len(payload)), 9500, 9600, 9700)

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	dev.Handle(readBufAddr, bufInfoHandler(len(hdr)+len(payload)))

	readAddr := lba.ReadInstance(testSessionID, testHWChannel)
	dev.Handle(readAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			raw := make([]byte, n)
			copy(raw, hdr)
			copy(raw[len(hdr):], payload)
			return raw, nil
		},
	})

	pkt, err := e.Read()
	require.NoError(t, err)
	require.Equal(t, uint16(1), pkt.FrameType)
	require.Equal(t, int32(20), pkt.AvgQP)
	require.Equal(t, uint32(3), pkt.RecycleIndex)
	require.True(t, pkt.AV1ShowFrame)
	require.Equal(t, uint16(len(payload)), pkt.MetadataSize)
	require.True(t, pkt.HasSSIM)
	require.InDelta(t, 0.95, pkt.SSIM[0], 0.0001)
	require.InDelta(t, 0.96, pkt.SSIM[1], 0.0001)
	require.InDelta(t, 0.97, pkt.SSIM[2], 0.0001)
	require.Equal(t, int64(500), pkt.PTS)
	require.Equal(t, int64(500), pkt.FrameTimestamp)
	require.Equal(t, payload, pkt.Data)
}

func TestEncoderReadLegacyHeaderHasNoSSIM(t *testing.T) {
	e, dev := newTestEncoder(t, baseEncoderParams(), false)

	frame := Frame{Data: make([]byte, 64), PTS: 700}
	require.NoError(t, e.Write(frame))

	payload := []byte("legacy-packet-bytes")
	hdr := buildBstreamHeader(false, 700, 0, 18, 1, false, uint16(len(payload)), 0, 0, 0)

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	dev.Handle(readBufAddr, bufInfoHandler(len(hdr)+len(payload)))

	readAddr := lba.ReadInstance(testSessionID, testHWChannel)
	dev.Handle(readAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			raw := make([]byte, n)
			copy(raw, hdr)
			copy(raw[len(hdr):], payload)
			return raw, nil
		},
	})

	pkt, err := e.Read()
	require.NoError(t, err)
	require.False(t, pkt.HasSSIM)
	require.Equal(t, int64(700), pkt.PTS)
	require.Equal(t, payload, pkt.Data)
}

func TestEncoderDrainThenReadReportsEndOfStream(t *testing.T) {
	e, dev := newTestEncoder(t, baseEncoderParams(), false)

	readBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoRead)
	dev.Handle(readBufAddr, bufInfoHandler(0))

	eosAddr := lba.QueryEOS(testSessionID, testHWChannel)
	dev.Handle(eosAddr, mockdevice.Handler{
		OnRead: func(_ uint32, n int) ([]byte, error) {
			buf := make([]byte, n)
			buf[0] = 1
			return buf, nil
		},
	})

	require.NoError(t, e.Drain())
	pkt, err := e.Read()
	require.NoError(t, err)
	require.True(t, pkt.EndOfStream)
	require.NoError(t, e.Close())
}

func TestEncoderEnsureWriteBufferFull(t *testing.T) {
	dev := mockdevice.New()
	seedOKStats(dev)

	writeBufAddr := lba.QueryInstanceBufInfo(testSessionID, testHWChannel, lba.SubtypeBufInfoWrite)
	dev.Handle(writeBufAddr, bufInfoHandler(10))

	e, err := OpenEncoder(dev, testSessionID, testHWChannel, time.Second, baseEncoderParams(), false, status.Identify{}, nil)
	require.NoError(t, err)

	err = e.Write(Frame{Data: make([]byte, constants.PageSize)})
	require.ErrorIs(t, err, ErrWriteBufferFull)
}
