package session

import (
	"encoding/binary"
	"time"

	"github.com/netint/go-xcoder/internal/bitstream"
	"github.com/netint/go-xcoder/internal/block"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/logging"
	"github.com/netint/go-xcoder/internal/metrics"
	"github.com/netint/go-xcoder/internal/status"
	"github.com/netint/go-xcoder/internal/validate"
)

// ni_metadata_enc_bstream_t is the per-packet header an encoder read
// pulls ahead of the compressed bitstream bytes (spec.md §6). Firmware
// <= 6.1 writes the 32-byte layout with no SSIM fields; current
// firmware writes the 64-byte layout, SSIM present only when the
// session asked for it.
const (
	bstreamHeaderSizeLegacy = 32
	bstreamHeaderSizeFull   = 64

	bstreamOffFrameTstamp   = 0
	bstreamOffFrameType     = 8
	bstreamOffAvgFrameQP    = 10
	bstreamOffRecycleIndex  = 12
	bstreamOffAV1ShowFrame  = 16
	bstreamOffMetadataSize  = 17
	bstreamOffSSIMY         = 19
	bstreamOffSSIMU         = 21
	bstreamOffSSIMV         = 23

	// ssimFixedPointScale converts the wire's u16 fixed-point SSIM
	// (spec.md §6: "ssim_Y/U/V ... u16 x 10000 fixed-point") to a float.
	ssimFixedPointScale = 10000.0
)

// Encoder drives an encoder session through
// Opened -> Configured -> Streaming -> Draining -> Closed (spec.md §4.5.2).
type Encoder struct {
	base   *Base
	params validate.EncoderParams

	dts *bitstream.DTSQueue

	readyToClose bool
	supportsSSIM bool

	maxHistoricalFrameSize int
}

// OpenEncoder opens a new encoder session and configures it.
func OpenEncoder(dev block.Interface, sessionID uint16, hwChannel uint8, timeout time.Duration, params validate.EncoderParams, supportsSSIM bool, id status.Identify, logger *logging.Logger) (*Encoder, error) {
	params, _, err := validate.ValidateEncoder(params)
	if err != nil {
		return nil, err
	}

	base := NewBase(dev, sessionID, hwChannel, logger)
	if err := base.Open(timeout, id); err != nil {
		return nil, err
	}

	e := &Encoder{
		base:         base,
		params:       params,
		dts:          bitstream.NewDTSQueue(),
		supportsSSIM: supportsSSIM,
	}
	if err := e.configure(); err != nil {
		base.Close()
		return nil, err
	}
	return e, nil
}

func (e *Encoder) configure() error {
	e.base.Lock()
	defer e.base.Unlock()

	payload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint16(payload[0:2], uint16(e.params.Width))
	binary.BigEndian.PutUint16(payload[2:4], uint16(e.params.Height))
	binary.BigEndian.PutUint32(payload[4:8], uint32(e.params.Bitrate))
	addr := lba.SetEncoderParams(e.base.sessionID, e.base.hwChannel)
	if err := e.base.ExecCommand(lba.OpSetEncoderParams.String(), addr, payload); err != nil {
		return err
	}
	e.base.state = StateConfigured
	return nil
}

func (e *Encoder) State() State      { return e.base.State() }
func (e *Encoder) SessionID() uint16 { return e.base.SessionID() }

// SetObserver installs the metrics.Observer this session reports
// commands, reads, retries, and keep-alive heartbeats through.
func (e *Encoder) SetObserver(o metrics.Observer) { e.base.SetObserver(o) }

// Write submits one raw frame for encoding. The set-write-len payload
// carries the frame length, the force-key-frame flag, the SEI override
// byte, the force-QP value and the frame's PTS; no long-term-reference
// hints or bitrate-reconfiguration data are sent.
func (e *Encoder) Write(f Frame) error {
	e.base.Lock()
	defer e.base.Unlock()

	if err := e.base.CheckInvalid(); err != nil {
		return err
	}
	e.base.state = StateStreaming

	frameLen := len(f.Data)
	if err := e.ensureWriteBuffer(frameLen); err != nil {
		return err
	}

	lenPayload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint32(lenPayload[0:4], uint32(frameLen))
	if f.ForceKeyFrame {
		lenPayload[4] = 1
	}
	lenPayload[5] = f.SEIOverride
	binary.BigEndian.PutUint32(lenPayload[6:10], uint32(f.ForceQP))
	binary.BigEndian.PutUint64(lenPayload[10:18], uint64(f.PTS))
	addr := lba.SetWriteLen(e.base.sessionID, e.base.hwChannel)
	if err := e.base.ExecCommand(lba.OpSetWriteLen.String(), addr, lenPayload); err != nil {
		return err
	}

	writeAddr := lba.WriteInstance(e.base.sessionID, e.base.hwChannel)
	padded := make([]byte, block.Align(frameLen))
	copy(padded, f.Data)
	if err := e.base.ExecCommand(lba.OpWriteInstance.String(), writeAddr, padded); err != nil {
		return err
	}

	if f.EndOfStream {
		eosAddr := lba.SetEOS(e.base.sessionID, e.base.hwChannel)
		if err := e.base.ExecCommand(lba.OpSetEOS.String(), eosAddr, e.base.scratch); err != nil {
			return err
		}
		e.readyToClose = true
	}

	e.dts.Push(f.DTS)
	return nil
}

func (e *Encoder) ensureWriteBuffer(frameLen int) error {
	for attempt := 0; attempt < constants.WriteBufferGrowRetryMax; attempt++ {
		addr := lba.QueryInstanceBufInfo(e.base.sessionID, e.base.hwChannel, lba.SubtypeBufInfoWrite)
		buf, err := e.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
		if err != nil {
			return err
		}
		available := int(binary.BigEndian.Uint32(buf[0:4]))
		if available >= frameLen {
			return nil
		}
		if e.maxHistoricalFrameSize >= frameLen {
			return ErrWriteBufferFull
		}
		e.maxHistoricalFrameSize = frameLen
	}
	return ErrWriteBufferFull
}

// Read pulls one compressed packet plus its bitstream metadata header
// (spec.md §4.5.2).
func (e *Encoder) Read() (Packet, error) {
	e.base.Lock()
	defer e.base.Unlock()

	if err := e.base.CheckInvalid(); err != nil {
		return Packet{}, err
	}

	addr := lba.QueryInstanceBufInfo(e.base.sessionID, e.base.hwChannel, lba.SubtypeBufInfoRead)
	buf, err := e.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
	if err != nil {
		return Packet{}, err
	}
	available := int(binary.BigEndian.Uint32(buf[0:4]))
	if available == 0 {
		if e.readyToClose {
			eosAddr := lba.QueryEOS(e.base.sessionID, e.base.hwChannel)
			eosBuf, err := e.base.ExecQuery(lba.OpQueryEOS.String(), eosAddr, constants.PageSize)
			if err != nil {
				return Packet{}, err
			}
			if eosBuf[0] != 0 {
				e.base.state = StateDraining
				return Packet{EndOfStream: true}, nil
			}
		}
		return Packet{}, ErrRetry
	}

	readAddr := lba.ReadInstance(e.base.sessionID, e.base.hwChannel)
	raw, err := e.base.ExecRead(lba.OpReadInstance.String(), readAddr, block.Align(available))
	if err != nil {
		return Packet{}, err
	}

	headerSize := bstreamHeaderSizeLegacy
	if e.supportsSSIM {
		headerSize = bstreamHeaderSizeFull
	}
	hdr := raw[:headerSize]
	frameTstamp := int64(binary.BigEndian.Uint64(hdr[bstreamOffFrameTstamp : bstreamOffFrameTstamp+8]))
	end := available
	if end < headerSize {
		end = headerSize
	}
	pkt := Packet{
		Data:           raw[headerSize:end],
		FrameTimestamp: frameTstamp,
		PTS:            frameTstamp,
		FrameType:      binary.BigEndian.Uint16(hdr[bstreamOffFrameType : bstreamOffFrameType+2]),
		AvgQP:          int32(binary.BigEndian.Uint16(hdr[bstreamOffAvgFrameQP : bstreamOffAvgFrameQP+2])),
		RecycleIndex:   binary.BigEndian.Uint32(hdr[bstreamOffRecycleIndex : bstreamOffRecycleIndex+4]),
		AV1ShowFrame:   hdr[bstreamOffAV1ShowFrame] != 0,
		MetadataSize:   binary.BigEndian.Uint16(hdr[bstreamOffMetadataSize : bstreamOffMetadataSize+2]),
	}
	if e.supportsSSIM {
		pkt.HasSSIM = true
		pkt.SSIM[0] = float64(binary.BigEndian.Uint16(hdr[bstreamOffSSIMY:bstreamOffSSIMY+2])) / ssimFixedPointScale
		pkt.SSIM[1] = float64(binary.BigEndian.Uint16(hdr[bstreamOffSSIMU:bstreamOffSSIMU+2])) / ssimFixedPointScale
		pkt.SSIM[2] = float64(binary.BigEndian.Uint16(hdr[bstreamOffSSIMV:bstreamOffSSIMV+2])) / ssimFixedPointScale
	}

	expected, _ := e.dts.Front()
	popped := e.dts.PopWithThreshold(expected, ptsReorderTolerance)
	pkt.DTS = popped.DTS
	return pkt, nil
}

// Drain requests end of stream (spec.md §4.5.2).
func (e *Encoder) Drain() error {
	e.base.Lock()
	defer e.base.Unlock()

	if e.readyToClose {
		return nil
	}
	addr := lba.SetEOS(e.base.sessionID, e.base.hwChannel)
	if err := e.base.ExecCommand(lba.OpSetEOS.String(), addr, e.base.scratch); err != nil {
		return err
	}
	e.readyToClose = true
	e.base.state = StateDraining
	return nil
}

// Close closes the session.
func (e *Encoder) Close() error {
	return e.base.Close()
}
