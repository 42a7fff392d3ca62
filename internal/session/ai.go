package session

import (
	"crypto/sha256"
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

// DataFormat and QuantFormat describe one inference tensor's wire
// layout (spec.md §4.5.5 read_inout_layers).
type DataFormat uint8
type QuantFormat uint8

const (
	DataFormatFloat32 DataFormat = iota
	DataFormatInt8
	DataFormatUint8
)

const (
	QuantFormatNone QuantFormat = iota
	QuantFormatAsymmetric
	QuantFormatSymmetric
)

// TensorLayer is one input or output tensor descriptor a network
// binary reports (spec.md §4.5.5).
type TensorLayer struct {
	NumDims  uint8
	Sizes    [4]uint32
	Format   DataFormat
	Quant    QuantFormat
	ByteSize uint32
}

const tensorLayerWireSize = 1 + 4*4 + 1 + 1 + 4

func parseTensorLayer(buf []byte) TensorLayer {
	be := binary.BigEndian
	var t TensorLayer
	t.NumDims = buf[0]
	for i := 0; i < 4; i++ {
		t.Sizes[i] = be.Uint32(buf[1+i*4 : 5+i*4])
	}
	t.Format = DataFormat(buf[17])
	t.Quant = QuantFormat(buf[18])
	t.ByteSize = be.Uint32(buf[19:23])
	return t
}

// AI drives an inference session: load a network binary once (skipping
// the upload when the accelerator already has it cached by hash), read
// back the model's tensor layout, then stream frames through and read
// packets back (spec.md §4.5.5).
type AI struct {
	base *Base

	networkLoaded bool
	inputLayers   []TensorLayer
	outputLayers  []TensorLayer
}

// OpenAI opens a new AI inference session.
func OpenAI(dev block.Interface, sessionID uint16, hwChannel uint8, timeout time.Duration, id status.Identify, logger *logging.Logger) (*AI, error) {
	base := NewBase(dev, sessionID, hwChannel, logger)
	if err := base.Open(timeout, id); err != nil {
		return nil, err
	}
	return &AI{base: base}, nil
}

func (a *AI) State() State      { return a.base.State() }
func (a *AI) SessionID() uint16 { return a.base.SessionID() }

// SetObserver installs the metrics.Observer this session reports
// commands, reads, retries, and keep-alive heartbeats through.
func (a *AI) SetObserver(o metrics.Observer) { a.base.SetObserver(o) }

// ConfigNetworkBinary uploads a network binary, page-aligned and
// streamed in PageSize chunks after a header carrying its size and
// SHA-256 digest. If query-network-layer-size reports the accelerator
// already has a binary cached under this digest, the body upload is
// skipped entirely (spec.md §4.5.5 config_network_binary).
func (a *AI) ConfigNetworkBinary(binaryData []byte) error {
	a.base.Lock()
	defer a.base.Unlock()

	if err := a.base.CheckInvalid(); err != nil {
		return err
	}

	digest := sha256.Sum256(binaryData)

	header := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint64(header[0:8], uint64(len(binaryData)))
	copy(header[8:40], digest[:])
	addr := lba.SetAIParams(a.base.sessionID, a.base.hwChannel)
	if err := a.base.ExecCommand(lba.OpSetAIParams.String(), addr, header); err != nil {
		return err
	}

	sizeAddr := lba.QueryNetworkLayerSize(a.base.sessionID, a.base.hwChannel)
	sizeBuf, err := a.base.ExecQuery(lba.OpQueryNetworkLayerSize.String(), sizeAddr, constants.PageSize)
	if err != nil {
		return err
	}
	cached := sizeBuf[0] != 0

	if !cached {
		writeAddr := lba.WriteInstance(a.base.sessionID, a.base.hwChannel)
		padded := make([]byte, block.Align(len(binaryData)))
		copy(padded, binaryData)
		for off := 0; off < len(padded); off += constants.PageSize {
			end := off + constants.PageSize
			if end > len(padded) {
				end = len(padded)
			}
			if err := a.base.ExecCommand(lba.OpWriteInstance.String(), writeAddr, padded[off:end]); err != nil {
				return err
			}
		}
	}

	if err := a.loadLayersLocked(); err != nil {
		return err
	}
	a.networkLoaded = true
	a.base.state = StateConfigured
	return nil
}

// loadLayersLocked reads back the tensor descriptors the loaded
// network reports, each 64-byte aligned per constants.HWFrameAlignment
// (spec.md §4.5.5 read_inout_layers). Callers hold the context mutex.
func (a *AI) loadLayersLocked() error {
	a.inputLayers = nil
	a.outputLayers = nil

	for idx := uint8(0); ; idx++ {
		addr := lba.QueryNetworkLayer(a.base.sessionID, a.base.hwChannel, idx)
		buf, err := a.base.ExecQuery(lba.OpQueryNetworkLayer.String(), addr, constants.HWFrameAlignment)
		if err != nil {
			return err
		}
		if buf[0] == 0 {
			break
		}
		layer := parseTensorLayer(buf[1:])
		if buf[constants.HWFrameAlignment-1] == 0 {
			a.inputLayers = append(a.inputLayers, layer)
		} else {
			a.outputLayers = append(a.outputLayers, layer)
		}
	}
	return nil
}

// InputLayers and OutputLayers expose the tensor descriptors loaded by
// ConfigNetworkBinary.
func (a *AI) InputLayers() []TensorLayer  { return a.inputLayers }
func (a *AI) OutputLayers() []TensorLayer { return a.outputLayers }

// Write submits one input frame for inference (spec.md §4.5.5
// write(input_frame)).
func (a *AI) Write(f Frame) error {
	a.base.Lock()
	defer a.base.Unlock()

	if err := a.base.CheckInvalid(); err != nil {
		return err
	}
	a.base.state = StateStreaming

	frameLen := len(f.Data)
	lenPayload := block.AlignedBuffer(constants.PageSize)
	binary.BigEndian.PutUint32(lenPayload[0:4], uint32(frameLen))
	addr := lba.SetWriteLen(a.base.sessionID, a.base.hwChannel)
	if err := a.base.ExecCommand(lba.OpSetWriteLen.String(), addr, lenPayload); err != nil {
		return err
	}

	writeAddr := lba.WriteInstance(a.base.sessionID, a.base.hwChannel)
	padded := make([]byte, block.Align(frameLen))
	copy(padded, f.Data)
	return a.base.ExecCommand(lba.OpWriteInstance.String(), writeAddr, padded)
}

// Read pulls one inference result packet (spec.md §4.5.5 read(packet)).
func (a *AI) Read() (Packet, error) {
	a.base.Lock()
	defer a.base.Unlock()

	if err := a.base.CheckInvalid(); err != nil {
		return Packet{}, err
	}

	addr := lba.QueryInstanceBufInfo(a.base.sessionID, a.base.hwChannel, lba.SubtypeBufInfoRead)
	buf, err := a.base.ExecQuery(lba.OpQueryInstanceBufInfo.String(), addr, constants.PageSize)
	if err != nil {
		return Packet{}, err
	}
	available := int(binary.BigEndian.Uint32(buf[0:4]))
	if available == 0 {
		return Packet{}, ErrRetry
	}

	readAddr := lba.ReadInstance(a.base.sessionID, a.base.hwChannel)
	raw, err := a.base.ExecRead(lba.OpReadInstance.String(), readAddr, block.Align(available))
	if err != nil {
		return Packet{}, err
	}
	return Packet{Data: raw}, nil
}

// AllocFrame requests a hardware frame to hold an inference output
// tensor, mirroring the scaler's descriptor-returning alloc call
// (spec.md §4.5.5, §4.8).
func (a *AI) AllocFrame() (hwframe.Descriptor, error) {
	a.base.Lock()
	defer a.base.Unlock()

	if err := a.base.CheckInvalid(); err != nil {
		return hwframe.Descriptor{}, err
	}

	addr := lba.AIAllocFrame(a.base.sessionID, a.base.hwChannel)
	if err := a.base.ExecCommand(lba.OpAIAllocFrame.String(), addr, a.base.scratch); err != nil {
		return hwframe.Descriptor{}, err
	}

	readAddr := lba.ReadInstance(a.base.sessionID, a.base.hwChannel)
	raw, err := a.base.ExecRead(lba.OpReadInstance.String(), readAddr, constants.PageSize)
	if err != nil {
		return hwframe.Descriptor{}, err
	}
	d := parseDescriptor(raw)
	hwframe.FillHostFields(&d, a.base.sessionID, 0, 0)
	return d, nil
}

// Close closes the session.
func (a *AI) Close() error {
	return a.base.Close()
}
