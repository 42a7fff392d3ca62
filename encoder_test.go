package xcoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netint/go-xcoder/internal/lba"
)

func openTestEncoder(t *testing.T) (*Encoder, func(uint32, []byte)) {
	t.Helper()
	d, dev := newTestDevice(nil)
	seedOKStats(dev, 0)

	writeBufAddr := lba.QueryInstanceBufInfo(0, testHWChannel, lba.SubtypeBufInfoWrite)
	dev.Handle(writeBufAddr, bufInfoHandler(1<<20))

	enc, err := d.OpenEncoder(testHWChannel, DefaultEncoderParams(), false)
	require.NoError(t, err)
	return enc, dev.Seed
}

func TestOpenEncoderRejectsInvalidParams(t *testing.T) {
	d, dev := newTestDevice(nil)
	seedOKStats(dev, 0)

	params := DefaultEncoderParams()
	params.Width = 10

	_, err := d.OpenEncoder(testHWChannel, params, false)
	require.Error(t, err)
	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	require.Equal(t, ErrCodeInvalidParam, xerr.Code)

	id, err := d.allocSessionID()
	require.NoError(t, err)
	require.Equal(t, uint16(0), id, "a failed open must release its session id")
}

func TestEncoderCloseTranslatesCleanly(t *testing.T) {
	enc, _ := openTestEncoder(t)
	require.NoError(t, enc.Close())
}
