package xcoder

import (
	"github.com/netint/go-xcoder/internal/hwframe"
	"github.com/netint/go-xcoder/internal/session"
)

// AI is an inference session: a loaded network binary consumes
// tensors written to it and produces result tensors on Read (spec.md
// §4.5.5).
type AI struct {
	dev *Device
	s   *session.AI
}

// OpenAI opens an inference session on hwChannel. Call
// ConfigNetworkBinary before Write/Read.
func (d *Device) OpenAI(hwChannel uint8) (*AI, error) {
	id, err := d.Identify()
	if err != nil {
		return nil, err
	}

	sessionID, err := d.allocSessionID()
	if err != nil {
		return nil, err
	}

	s, err := session.OpenAI(d.dev, sessionID, hwChannel, d.opts.keepAliveTimeout(), id, d.opts.logger())
	if err != nil {
		d.releaseSessionID(sessionID)
		return nil, translate("open-ai", sessionID, err)
	}
	s.SetObserver(d.opts.observer())
	return &AI{dev: d, s: s}, nil
}

// SessionID returns the bound 7-bit session id.
func (a *AI) SessionID() uint16 { return a.s.SessionID() }

// State returns the session's current lifecycle state.
func (a *AI) State() session.State { return a.s.State() }

// ConfigNetworkBinary uploads (or, if already cached on the
// accelerator, skips uploading) binaryData and loads its declared
// input/output tensor layers.
func (a *AI) ConfigNetworkBinary(binaryData []byte) error {
	return translate("ai-config-network-binary", a.SessionID(), a.s.ConfigNetworkBinary(binaryData))
}

// InputLayers returns the loaded network's input tensor layers.
func (a *AI) InputLayers() []TensorLayer { return a.s.InputLayers() }

// OutputLayers returns the loaded network's output tensor layers.
func (a *AI) OutputLayers() []TensorLayer { return a.s.OutputLayers() }

// Write submits one input tensor frame for inference.
func (a *AI) Write(f Frame) error {
	return translate("ai-write", a.SessionID(), a.s.Write(f))
}

// Read pulls one inference result tensor packet.
func (a *AI) Read() (Packet, error) {
	p, err := a.s.Read()
	return p, translate("ai-read", a.SessionID(), err)
}

// AllocFrame allocates one hardware-resident output tensor frame.
func (a *AI) AllocFrame() (hwframe.Descriptor, error) {
	d, err := a.s.AllocFrame()
	return d, translate("ai-alloc-frame", a.SessionID(), err)
}

// Close releases the session and its 7-bit id back to the device.
func (a *AI) Close() error {
	err := a.s.Close()
	a.dev.releaseSessionID(a.SessionID())
	return translate("ai-close", a.SessionID(), err)
}
