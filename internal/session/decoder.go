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
	"github.com/netint/go-xcoder/internal/sei"
	"github.com/netint/go-xcoder/internal/status"
	"github.com/netint/go-xcoder/internal/validate"
)

const (
	flagStartOfStream = 1 << 0
	flagEndOfStream   = 1 << 1

	// ptsReorderTolerance bounds how far a popped DTS may sit from the
	// expected value before it is treated as missing (spec.md §4.5.1
	// step 7).
	ptsReorderTolerance = 3
)

// Decoder drives a decoder session through
// Opened -> Configured -> Streaming -> Draining -> Flushed -> Closed
// (spec.md §4.5.1).
type Decoder struct {
	base   *Base
	params validate.DecoderParams

	ring *bitstream.Ring
	dts  *bitstream.DTSQueue

	streamInfo     StreamInfo
	haveStreamInfo bool

	readyToClose bool
	flushed      bool

	maxHistoricalPktSize int
	picReorderDelay      int

	lastPTS int64
	lastDTS int64
	havePTS bool

	faultyDTSCount int
	faultyPTSCount int

	legacyTrailer bool

	// scaler is the internal scaler session a VP9 decode attaches to
	// itself (spec.md §9 "Cyclic structures"). The decoder owns it:
	// callers never close it directly.
	scaler *Scaler
}

// OpenDecoder opens a new decoder session and configures it. When
// params.Codec is validate.CodecVP9, it also opens and attaches an
// internal scaler session under scalerSessionID (spec.md §9 "Cyclic
// structures"); scalerSessionID is ignored otherwise.
func OpenDecoder(dev block.Interface, sessionID uint16, hwChannel uint8, timeout time.Duration, params validate.DecoderParams, legacyTrailer bool, scalerSessionID uint16, id status.Identify, logger *logging.Logger) (*Decoder, error) {
	params, _, err := validate.ValidateDecoder(params)
	if err != nil {
		return nil, err
	}

	base := NewBase(dev, sessionID, hwChannel, logger)
	if err := base.Open(timeout, id); err != nil {
		return nil, err
	}

	d := &Decoder{
		base:          base,
		params:        params,
		ring:          bitstream.NewRing(),
		dts:           bitstream.NewDTSQueue(),
		legacyTrailer: legacyTrailer,
	}

	if params.Codec == validate.CodecVP9 {
		scaler, err := OpenScaler(dev, scalerSessionID, hwChannel, timeout, ScalerParams{Mode: BlitSimple, NumInputs: 1}, id, logger)
		if err != nil {
			base.Close()
			return nil, err
		}
		d.scaler = scaler
	}

	if err := d.configure(); err != nil {
		if d.scaler != nil {
			d.scaler.Close()
		}
		base.Close()
		return nil, err
	}
	return d, nil
}

// AttachedScalerSessionID returns the session id of the internal
// scaler a VP9 decode attached, and whether one exists.
func (d *Decoder) AttachedScalerSessionID() (uint16, bool) {
	if d.scaler == nil {
		return 0, false
	}
	return d.scaler.SessionID(), true
}

func (d *Decoder) configure() error {
	d.base.Lock()
	defer d.base.Unlock()

	payload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint16(payload[0:2], uint16(d.params.Width))
	binary.BigEndian.PutUint16(payload[2:4], uint16(d.params.Height))
	addr := lba.SetDecoderParams(d.base.sessionID, d.base.hwChannel)
	if err := d.base.ExecCommand(lba.OpSetDecoderParams.String(), addr, payload); err != nil {
		return err
	}
	d.base.state = StateConfigured
	return nil
}

// State returns the session's current lifecycle state.
func (d *Decoder) State() State { return d.base.State() }

// SessionID returns the bound session id.
func (d *Decoder) SessionID() uint16 { return d.base.SessionID() }

// SetObserver installs the metrics.Observer this session reports
// commands, reads, retries, and keep-alive heartbeats through.
func (d *Decoder) SetObserver(o metrics.Observer) { d.base.SetObserver(o) }

// Write pushes one compressed packet into the decoder (spec.md
// §4.5.1 write(packet)).
func (d *Decoder) Write(pkt Packet) error {
	d.base.Lock()
	defer d.base.Unlock()

	if err := d.base.CheckInvalid(); err != nil {
		return err
	}
	d.base.state = StateStreaming

	pktLen := len(pkt.Data)
	if err := d.ensureWriteBuffer(pktLen); err != nil {
		return err
	}

	lenPayload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint32(lenPayload[0:4], uint32(pktLen))
	addr := lba.SetWriteLen(d.base.sessionID, d.base.hwChannel)
	if err := d.base.ExecCommand(lba.OpSetWriteLen.String(), addr, lenPayload); err != nil {
		return err
	}

	if pkt.StartOfStream {
		sosAddr := lba.SetSOS(d.base.sessionID, d.base.hwChannel)
		if err := d.base.ExecCommand(lba.OpSetSOS.String(), sosAddr, d.base.scratch); err != nil {
			return err
		}
	}

	writeAddr := lba.WriteInstance(d.base.sessionID, d.base.hwChannel)
	padded := make([]byte, block.Align(pktLen))
	copy(padded, pkt.Data)
	if err := d.base.ExecCommand(lba.OpWriteInstance.String(), writeAddr, padded); err != nil {
		return err
	}

	var flags uint32
	if pkt.StartOfStream {
		flags |= flagStartOfStream
	}
	if pkt.EndOfStream {
		flags |= flagEndOfStream
	}
	d.ring.Insert(pkt.PTS, flags, uint64(pktLen), pkt.CustomSEI)

	if pkt.EndOfStream {
		eosAddr := lba.SetEOS(d.base.sessionID, d.base.hwChannel)
		if err := d.base.ExecCommand(lba.OpSetEOS.String(), eosAddr, d.base.scratch); err != nil {
			return err
		}
		d.readyToClose = true
	}

	d.dts.Push(pkt.DTS)
	return nil
}

// ensureWriteBuffer implements the write-buffer-available growth
// retry loop (spec.md §4.5.1 step 1).
func (d *Decoder) ensureWriteBuffer(pktLen int) error {
	for attempt := 0; attempt < constants.WriteBufferGrowRetryMax; attempt++ {
		addr := lba.QueryInstanceBufInfo(d.base.sessionID, d.base.hwChannel, lba.SubtypeBufInfoWrite)
		buf, err := d.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
		if err != nil {
			return err
		}
		available := int(binary.BigEndian.Uint32(buf[0:4]))
		if available >= pktLen {
			return nil
		}
		if d.maxHistoricalPktSize >= pktLen {
			return ErrWriteBufferFull
		}

		growPayload := block.AlignedBuffer(constants.PageSize)
		binary.BigEndian.PutUint32(growPayload[0:4], uint32(pktLen))
		growAddr := lba.SetDecoderParams(d.base.sessionID, d.base.hwChannel)
		if err := d.base.ExecCommand(lba.OpSetDecoderParams.String(), growAddr, growPayload); err != nil {
			return err
		}
		d.maxHistoricalPktSize = pktLen
	}
	return ErrWriteBufferFull
}

// Read pulls one decoded frame (spec.md §4.5.1 read(frame)).
func (d *Decoder) Read() (Frame, error) {
	d.base.Lock()
	defer d.base.Unlock()

	if err := d.base.CheckInvalid(); err != nil {
		return Frame{}, err
	}

	available, err := d.pollReadBufferAvailable()
	if err != nil {
		return Frame{}, err
	}

	trailerSize := constants.MetadataTrailerSize64
	if d.legacyTrailer {
		trailerSize = constants.MetadataTrailerSize32
	}

	if available == trailerSize {
		return Frame{SequenceChange: true}, nil
	}

	if available == 0 {
		if d.readyToClose {
			eosAddr := lba.QueryEOS(d.base.sessionID, d.base.hwChannel)
			buf, err := d.base.ExecQuery(lba.OpQueryEOS.String(), eosAddr, constants.PageSize)
			if err != nil {
				return Frame{}, err
			}
			if buf[0] != 0 {
				d.flushed = true
				d.base.state = StateFlushed
				return Frame{EndOfStream: true}, nil
			}
		}
		return Frame{}, ErrRetry
	}

	if !d.haveStreamInfo {
		addr := lba.QueryStreamInfo(d.base.sessionID, d.base.hwChannel)
		buf, err := d.base.ExecQuery(lba.OpQueryStreamInfo.String(), addr, constants.PageSize)
		if err != nil {
			return Frame{}, err
		}
		d.streamInfo = parseStreamInfo(buf)
		d.haveStreamInfo = true
	}

	if !d.dts.Ready(d.picReorderDelay+1, d.readyToClose) {
		return Frame{}, ErrRetry
	}

	readAddr := lba.ReadInstance(d.base.sessionID, d.base.hwChannel)
	raw, err := d.base.ExecRead(lba.OpReadInstance.String(), readAddr, block.Align(available))
	if err != nil {
		return Frame{}, err
	}

	trailer, err := sei.ParseTrailer(raw[len(raw)-trailerSize:], d.legacyTrailer)
	if err != nil {
		return Frame{}, err
	}

	seiAreaEnd := len(raw) - trailerSize
	seiAreaStart := seiAreaEnd - int(trailer.SEIBytesCount)
	var metadata sei.Metadata
	if seiAreaStart >= 0 && trailer.SEICount > 0 {
		seiArea := raw[seiAreaStart:seiAreaEnd]
		entries, offsets, err := sei.ParseEntries(seiArea, int(trailer.SEICount))
		if err != nil {
			d.base.logger.Warn("sei entry table malformed, skipping", "error", err)
		} else {
			metadata = sei.Classify(entries, offsets)
			d.base.observer.ObserveSEIEmitted(d.base.sessionID, len(entries))
		}
	} else {
		seiAreaStart = seiAreaEnd
	}

	expected, _ := d.dts.Front()
	popped := d.dts.PopWithThreshold(expected, ptsReorderTolerance)
	if popped.Padded {
		d.picReorderDelay++
	}

	frame := Frame{
		Data:     raw[:seiAreaStart],
		Width:    int(trailer.FrameWidth),
		Height:   int(trailer.FrameHeight),
		DTS:      popped.DTS,
		PictType: trailer.PictType,
		Metadata: metadata,
		Crop:     trailer.Crop,
	}

	dtsFaulty := d.havePTS && popped.DTS <= d.lastDTS
	if dtsFaulty {
		d.faultyDTSCount++
	}

	var dtsDelta int64
	if d.havePTS {
		dtsDelta = d.lastPTS + (popped.DTS - d.lastDTS)
	}

	lookup := d.ring.FindByOffset(trailer.FrameOffset)
	switch {
	case lookup.Found:
		ptsFaulty := d.havePTS && lookup.PTS <= d.lastPTS
		if ptsFaulty {
			d.faultyPTSCount++
		}
		if ptsFaulty && !dtsFaulty && d.havePTS && d.faultyPTSCount > d.faultyDTSCount {
			frame.PTS = dtsDelta
			d.base.logger.Warn("ring pts judged unreliable, using dts delta", "frame_offset", trailer.FrameOffset)
		} else {
			frame.PTS = lookup.PTS
		}
	case d.havePTS:
		frame.PTS = dtsDelta
		d.base.logger.Warn("pts recovered from dts delta, precision reduced", "frame_offset", trailer.FrameOffset)
	}

	d.lastPTS = frame.PTS
	d.lastDTS = popped.DTS
	d.havePTS = true

	return frame, nil
}

func (d *Decoder) pollReadBufferAvailable() (int, error) {
	subtype := lba.SubtypeBufInfoRead
	if d.params.LowDelay {
		subtype = lba.SubtypeBufInfoReadBusy
	}
	addr := lba.QueryInstanceBufInfo(d.base.sessionID, d.base.hwChannel, subtype)

	if d.params.LowDelay {
		buf, err := d.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(buf[0:4])), nil
	}

	for i := 0; i < constants.ReadPollMaxIterations; i++ {
		buf, err := d.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
		if err != nil {
			return 0, err
		}
		available := int(binary.BigEndian.Uint32(buf[0:4]))
		if available > 0 || d.readyToClose {
			return available, nil
		}
		d.base.Unlock()
		time.Sleep(constants.ReadPollBackoff)
		d.base.Lock()
		if err := d.base.CheckInvalid(); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// Drain requests end of stream and transitions to Draining; callers
// keep calling Read until it returns Frame.EndOfStream (spec.md
// §4.5.1 Drain).
func (d *Decoder) Drain() error {
	d.base.Lock()
	defer d.base.Unlock()

	if d.readyToClose {
		return nil
	}
	addr := lba.SetEOS(d.base.sessionID, d.base.hwChannel)
	if err := d.base.ExecCommand(lba.OpSetEOS.String(), addr, d.base.scratch); err != nil {
		return err
	}
	d.readyToClose = true
	d.base.state = StateDraining
	return nil
}

// Close closes the session, first cascading the close to its attached
// scaler session if one was opened for VP9 decode (spec.md §9 "Cyclic
// structures"). The attached scaler must never be closed directly by
// a caller; this is its only path to closing.
func (d *Decoder) Close() error {
	if d.scaler != nil {
		if err := d.scaler.Close(); err != nil {
			d.base.logger.Warn("attached scaler close failed", "error", err.Error())
		}
	}
	return d.base.Close()
}
