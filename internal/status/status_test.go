package status

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeStats(s Stats) []byte {
	buf := make([]byte, statsSize)
	be := binary.BigEndian
	be.PutUint16(buf[0:2], s.SessionID)
	be.PutUint32(buf[2:6], s.ErrCount)
	be.PutUint32(buf[6:10], s.LastTxID)
	be.PutUint32(buf[10:14], uint32(s.LastRC))
	be.PutUint32(buf[14:18], s.LastErrTxID)
	be.PutUint32(buf[18:22], uint32(s.LastErr))
	be.PutUint64(buf[22:30], s.SessionTimestamp)
	return buf
}

func TestParseStats(t *testing.T) {
	want := Stats{
		SessionID:        12,
		ErrCount:         3,
		LastTxID:         99,
		LastRC:           -1,
		LastErrTxID:      98,
		LastErr:          LastErrVpuRecovery,
		SessionTimestamp: 0xDEADBEEFCAFE,
	}
	got, err := ParseStats(encodeStats(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestParseStatsShortBuffer(t *testing.T) {
	_, err := ParseStats(make([]byte, 4))
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestParseIdentify(t *testing.T) {
	buf := make([]byte, IdentifyPayloadSize)
	be := binary.BigEndian
	be.PutUint16(buf[identifyOffVID:], 0x1D82)
	be.PutUint16(buf[identifyOffSSVID:], 0x1D82)
	copy(buf[identifyOffModel:], "Quadra T2U                             ")
	buf[identifyOffXcoderNumElements] = 2
	buf[identifyOffNumH264Dec] = 1
	buf[identifyOffNumH265Enc] = 4

	id, err := ParseIdentify(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1D82), id.VID)
	require.True(t, id.IsGenuineNetint(0x1D82))
	require.False(t, id.UsesLegacyDescriptorLayout())
	require.Equal(t, uint8(1), id.NumH264Decoders)
	require.Equal(t, uint8(4), id.NumH265Encoders)
	require.Equal(t, "Quadra T2U", id.Model)
}

func TestParseIdentifyShortBuffer(t *testing.T) {
	_, err := ParseIdentify(make([]byte, 10))
	require.ErrorIs(t, err, ErrShortBuffer)
}
