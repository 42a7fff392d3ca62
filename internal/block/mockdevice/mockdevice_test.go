package mockdevice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundtrips(t *testing.T) {
	d := New()
	require.NoError(t, d.WriteAt(100, []byte{1, 2, 3, 4}))

	got, err := d.ReadAt(100, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestReadUnwrittenLBAReturnsZeros(t *testing.T) {
	d := New()
	got, err := d.ReadAt(42, 8)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), got)
}

func TestHandlerOverridesRead(t *testing.T) {
	d := New()
	d.Handle(5, Handler{
		OnRead: func(lba uint32, n int) ([]byte, error) {
			return []byte{0xAA, 0xBB}, nil
		},
	})

	got, err := d.ReadAt(5, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, got)
}

func TestHandlerOverridesWrite(t *testing.T) {
	d := New()
	var captured []byte
	d.Handle(7, Handler{
		OnWrite: func(lba uint32, buf []byte) error {
			captured = append([]byte{}, buf...)
			return nil
		},
	})

	require.NoError(t, d.WriteAt(7, []byte{9, 9}))
	require.Equal(t, []byte{9, 9}, captured)

	_, ok := d.StoredAt(7)
	require.False(t, ok, "handler-intercepted write should not fall through to the backing store")
}

func TestSeedPrepopulatesStore(t *testing.T) {
	d := New()
	d.Seed(1, []byte{7, 7, 7})

	got, err := d.ReadAt(1, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 7, 7}, got)
}

func TestAccessLogTracksCalls(t *testing.T) {
	d := New()
	_ = d.WriteAt(1, []byte{1})
	_, _ = d.ReadAt(1, 1)

	require.Len(t, d.Writes(), 1)
	require.Len(t, d.Reads(), 1)
}
