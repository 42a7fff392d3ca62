package session

import "encoding/binary"

// StreamInfo is the active geometry a decoder session learns from
// query-stream-info on the first readable frame (spec.md §4.5.1 step 4).
type StreamInfo struct {
	Width          uint16
	Height         uint16
	TransferStride uint16
	PixelFormat    uint8
	BitDepthFactor uint8
}

const streamInfoSize = 2 + 2 + 2 + 1 + 1

func parseStreamInfo(buf []byte) StreamInfo {
	be := binary.BigEndian
	var si StreamInfo
	if len(buf) < streamInfoSize {
		return si
	}
	si.Width = be.Uint16(buf[0:2])
	si.Height = be.Uint16(buf[2:4])
	si.TransferStride = be.Uint16(buf[4:6])
	si.PixelFormat = buf[6]
	si.BitDepthFactor = buf[7]
	return si
}
