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

// BlitMode selects simple single-pass or multi-stack scaling (spec.md
// §4.5.3's set-scaler-params filterblit bit).
type BlitMode uint8

const (
	BlitSimple BlitMode = iota
	BlitStack
)

// ScalerParams configures a scaler session (spec.md §4.5.3).
type ScalerParams struct {
	Mode      BlitMode
	NumInputs uint8
}

// FrameConfig is one entry in an alloc_frame/config_frame/
// multi_config_frame call: the output geometry and placement of a
// single blit destination (spec.md §4.5.3).
type FrameConfig struct {
	Width, Height  uint16
	PixelFormat    uint8
	Options        uint8
	CropX, CropY   uint16
	CropW, CropH   uint16
	RGBAColor      uint32
	FrameIndex     uint32
	SessionID      uint16
	OutputIdx      uint8
}

const frameConfigSize = 2 + 2 + 1 + 1 + 2 + 2 + 2 + 2 + 4 + 4 + 2 + 1

func (c FrameConfig) encode(dst []byte) {
	be := binary.BigEndian
	be.PutUint16(dst[0:2], c.Width)
	be.PutUint16(dst[2:4], c.Height)
	dst[4] = c.PixelFormat
	dst[5] = c.Options
	be.PutUint16(dst[6:8], c.CropX)
	be.PutUint16(dst[8:10], c.CropY)
	be.PutUint16(dst[10:12], c.CropW)
	be.PutUint16(dst[12:14], c.CropH)
	be.PutUint32(dst[14:18], c.RGBAColor)
	be.PutUint32(dst[18:22], c.FrameIndex)
	be.PutUint16(dst[22:24], c.SessionID)
	dst[24] = c.OutputIdx
}

// Scaler drives a scaler session: alloc/config one or more output
// frames per call, then read back the resulting hardware-frame
// descriptor set (spec.md §4.5.3).
type Scaler struct {
	base   *Base
	params ScalerParams
}

// OpenScaler opens a new scaler session and configures it. Requesting
// BlitStack on firmware below MinFirmwareScalerStackMode fails with
// ErrUnsupportedFirmware (spec.md §7, §9).
func OpenScaler(dev block.Interface, sessionID uint16, hwChannel uint8, timeout time.Duration, params ScalerParams, id status.Identify, logger *logging.Logger) (*Scaler, error) {
	if params.Mode == BlitStack && id.FirmwareVersionCode() < constants.MinFirmwareScalerStackMode {
		return nil, ErrUnsupportedFirmware
	}

	base := NewBase(dev, sessionID, hwChannel, logger)
	if err := base.Open(timeout, id); err != nil {
		return nil, err
	}

	s := &Scaler{base: base, params: params}
	if err := s.configure(); err != nil {
		base.Close()
		return nil, err
	}
	return s, nil
}

func (s *Scaler) configure() error {
	s.base.Lock()
	defer s.base.Unlock()

	payload := block.AlignedBuffer(constants.PageSize)
	payload[0] = uint8(s.params.Mode)
	payload[1] = s.params.NumInputs
	addr := lba.SetScalerParams(s.base.sessionID, s.base.hwChannel)
	if err := s.base.ExecCommand(lba.OpSetScalerParams.String(), addr, payload); err != nil {
		return err
	}
	s.base.state = StateConfigured
	return nil
}

func (s *Scaler) State() State      { return s.base.State() }
func (s *Scaler) SessionID() uint16 { return s.base.SessionID() }

// SetObserver installs the metrics.Observer this session reports
// commands, reads, retries, and keep-alive heartbeats through.
func (s *Scaler) SetObserver(o metrics.Observer) { s.base.SetObserver(o) }

// AllocFrame submits one output configuration and blocks until the
// corresponding hardware-frame descriptor is available to read
// (spec.md §4.5.3 alloc_frame/config_frame).
func (s *Scaler) AllocFrame(cfg FrameConfig) (hwframe.Descriptor, error) {
	set, err := s.MultiConfigFrame([]FrameConfig{cfg})
	if err != nil {
		return hwframe.Descriptor{}, err
	}
	d, _ := set.Get(cfg.OutputIdx)
	return d, nil
}

// MultiConfigFrame submits up to constants.NMaxOutputs output
// configurations in a single call and returns the resulting
// descriptor set (spec.md §4.5.3 multi_config_frame).
func (s *Scaler) MultiConfigFrame(cfgs []FrameConfig) (hwframe.Set, error) {
	s.base.Lock()
	defer s.base.Unlock()

	var set hwframe.Set
	if err := s.base.CheckInvalid(); err != nil {
		return set, err
	}
	if len(cfgs) == 0 || len(cfgs) > constants.NMaxOutputs {
		return set, ErrInvalidSession
	}
	s.base.state = StateStreaming

	payload := block.AlignedBuffer(constants.PageSize)
	for i, cfg := range cfgs {
		cfg.encode(payload[i*frameConfigSize:])
	}
	addr := lba.ScalerAllocFrame(s.base.sessionID, s.base.hwChannel)
	if err := s.base.ExecCommand(lba.OpScalerAllocFrame.String(), addr, payload); err != nil {
		return set, err
	}

	readAddr := lba.ReadInstance(s.base.sessionID, s.base.hwChannel)
	raw, err := s.base.ExecRead(lba.OpReadInstance.String(), readAddr, constants.PageSize)
	if err != nil {
		return set, err
	}

	for i := range cfgs {
		d := parseDescriptor(raw[i*descriptorWireSize:])
		hwframe.FillHostFields(&d, s.base.sessionID, 0, 0)
		set.Put(d)
	}
	return set, nil
}

const descriptorWireSize = 4 + 1 + 1 + 1

func parseDescriptor(buf []byte) hwframe.Descriptor {
	return hwframe.Descriptor{
		FrameIndex:   binary.BigEndian.Uint32(buf[0:4]),
		OutputIdx:    buf[4],
		EncodingType: buf[5],
		BitDepth:     buf[6],
	}
}

// Close closes the session.
func (s *Scaler) Close() error {
	return s.base.Close()
}
