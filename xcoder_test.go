package xcoder

import (
	"encoding/binary"
	"testing"

	"github.com/netint/go-xcoder/internal/block/mockdevice"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/lba"
)

const testHWChannel = 0

// seedOKStats installs a fixed, always-OK query-session-stats response
// for sessionID so every open/configure/close sequence in a test
// classifies clean without needing per-call bookkeeping.
func seedOKStats(dev *mockdevice.Device, sessionID uint16) {
	buf := make([]byte, constants.PageSize)
	binary.BigEndian.PutUint16(buf[0:2], sessionID)
	binary.BigEndian.PutUint64(buf[22:30], 100)
	addr := lba.QuerySessionStats(sessionID, testHWChannel)
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

func newTestDevice(opts *Options) (*Device, *mockdevice.Device) {
	dev := mockdevice.New()
	return newDevice(dev, "/dev/mock0", opts), dev
}
