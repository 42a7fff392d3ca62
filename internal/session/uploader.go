package session

import (
	"encoding/binary"
	"time"

	"github.com/netint/go-xcoder/internal/block"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/hwframe"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/logging"
	"github.com/netint/go-xcoder/internal/metrics"
	"github.com/netint/go-xcoder/internal/status"
)

// PoolKind selects the uploader's frame-pool allocation strategy
// (spec.md §4.5.4 set-uploader-params pool_kind).
type PoolKind uint8

const (
	PoolKindDevice PoolKind = iota
	PoolKindP2P
)

// UploaderParams configures an uploader session (spec.md §4.5.4).
type UploaderParams struct {
	PoolSize int
	PoolKind PoolKind
}

// Uploader drives an uploader session: it is a thin variant of an
// encoder session opened with the upload sub-flag, trading
// write(packet) for write(frame)-then-read-descriptor so raw YUV can
// be staged directly into a hardware frame pool ahead of encoding
// (spec.md §4.5.4).
type Uploader struct {
	base   *Base
	params UploaderParams
	p2p    *hwframe.P2PContext
}

// OpenUploader opens a new uploader session and configures it. If id
// reports a P2P-capable device and params.PoolKind asks for one,
// OpenUploader also opens the P2P context so GetMemoryOffset is usable.
func OpenUploader(dev block.Interface, sessionID uint16, hwChannel uint8, timeout time.Duration, params UploaderParams, id status.Identify, logger *logging.Logger) (*Uploader, error) {
	base := NewBase(dev, sessionID, hwChannel, logger)
	if err := base.Open(timeout, id); err != nil {
		return nil, err
	}

	u := &Uploader{base: base, params: params}
	if params.PoolKind == PoolKindP2P {
		p2p, err := hwframe.OpenP2P(id)
		if err != nil {
			logger.Warn("p2p context unavailable, falling back to device pool", "error", err.Error())
		} else {
			u.p2p = p2p
		}
	}
	if err := u.configure(); err != nil {
		base.Close()
		return nil, err
	}
	return u, nil
}

func (u *Uploader) configure() error {
	u.base.Lock()
	defer u.base.Unlock()

	payload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint32(payload[0:4], uint32(u.params.PoolSize))
	payload[4] = uint8(u.params.PoolKind)
	addr := lba.SetEncoderParams(u.base.sessionID, u.base.hwChannel)
	if err := u.base.ExecCommand(lba.OpSetEncoderParams.String(), addr, payload); err != nil {
		return err
	}
	u.base.state = StateConfigured
	return nil
}

func (u *Uploader) State() State      { return u.base.State() }
func (u *Uploader) SessionID() uint16 { return u.base.SessionID() }

// SetObserver installs the metrics.Observer this session reports
// commands, reads, retries, and keep-alive heartbeats through.
func (u *Uploader) SetObserver(o metrics.Observer) { u.base.SetObserver(o) }

// Write stages one raw frame into the upload pool and returns the
// descriptor of the hardware buffer it now occupies (spec.md §4.5.4
// write(frame)).
func (u *Uploader) Write(f Frame) (hwframe.Descriptor, error) {
	u.base.Lock()
	defer u.base.Unlock()

	if err := u.base.CheckInvalid(); err != nil {
		return hwframe.Descriptor{}, err
	}
	u.base.state = StateStreaming

	subtype := lba.SubtypeBufInfoUpload
	addr := lba.QueryInstanceBufInfo(u.base.sessionID, u.base.hwChannel, subtype)
	buf, err := u.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
	if err != nil {
		return hwframe.Descriptor{}, err
	}
	if binary.BigEndian.Uint32(buf[0:4]) == 0 {
		return hwframe.Descriptor{}, ErrRetry
	}

	frameLen := len(f.Data)
	lenPayload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint32(lenPayload[0:4], uint32(frameLen))
	lenAddr := lba.SetWriteLen(u.base.sessionID, u.base.hwChannel)
	if err := u.base.ExecCommand(lba.OpSetWriteLen.String(), lenAddr, lenPayload); err != nil {
		return hwframe.Descriptor{}, err
	}

	writeAddr := lba.WriteInstance(u.base.sessionID, u.base.hwChannel)
	padded := make([]byte, block.Align(frameLen))
	copy(padded, f.Data)
	if err := u.base.ExecCommand(lba.OpWriteInstance.String(), writeAddr, padded); err != nil {
		return hwframe.Descriptor{}, err
	}

	readAddr := lba.ReadInstance(u.base.sessionID, u.base.hwChannel)
	raw, err := u.base.ExecRead(lba.OpReadInstance.String(), readAddr, constants.PageSize)
	if err != nil {
		return hwframe.Descriptor{}, err
	}
	d := parseDescriptor(raw)
	hwframe.FillHostFields(&d, u.base.sessionID, 0, 0)
	return d, nil
}

// MemoryOffset returns the P2P BAR offset for a previously uploaded
// frame, if this uploader was opened with a P2P pool (spec.md §4.8).
func (u *Uploader) MemoryOffset(frameIndex uint32) (uint64, error) {
	if u.p2p == nil {
		return 0, ErrInvalidSession
	}
	return u.p2p.GetMemoryOffset(frameIndex)
}

// Close closes the session.
func (u *Uploader) Close() error {
	return u.base.Close()
}
