package xcoder

import (
	"github.com/netint/go-xcoder/internal/hwframe"
	"github.com/netint/go-xcoder/internal/session"
)

// Uploader is an upload session: host-resident frames in, hardware
// frame descriptors out, optionally over a P2P fast path (spec.md
// §4.5.4, §4.8).
type Uploader struct {
	dev *Device
	s   *session.Uploader
}

// OpenUploader opens an uploader session on hwChannel. It first calls
// Device.Identify, whose result also decides whether a PoolKindP2P
// request can open the P2P context; P2P unavailability degrades to the
// device pool with a warning rather than failing the open.
func (d *Device) OpenUploader(hwChannel uint8, params UploaderParams) (*Uploader, error) {
	id, err := d.Identify()
	if err != nil {
		return nil, err
	}

	sessionID, err := d.allocSessionID()
	if err != nil {
		return nil, err
	}

	s, err := session.OpenUploader(d.dev, sessionID, hwChannel, d.opts.keepAliveTimeout(), params, id, d.opts.logger())
	if err != nil {
		d.releaseSessionID(sessionID)
		return nil, translate("open-uploader", sessionID, err)
	}
	s.SetObserver(d.opts.observer())
	return &Uploader{dev: d, s: s}, nil
}

// SessionID returns the bound 7-bit session id.
func (u *Uploader) SessionID() uint16 { return u.s.SessionID() }

// State returns the session's current lifecycle state.
func (u *Uploader) State() session.State { return u.s.State() }

// Write uploads one host-resident frame, returning the hardware
// frame descriptor for the buffer it now occupies.
func (u *Uploader) Write(f Frame) (hwframe.Descriptor, error) {
	d, err := u.s.Write(f)
	return d, translate("uploader-write", u.SessionID(), err)
}

// MemoryOffset returns the P2P BAR offset for frameIndex. Returns
// ErrCodeInvalidSession if this session did not negotiate P2P.
func (u *Uploader) MemoryOffset(frameIndex uint32) (uint64, error) {
	off, err := u.s.MemoryOffset(frameIndex)
	return off, translate("uploader-memory-offset", u.SessionID(), err)
}

// Close releases the session and its 7-bit id back to the device.
func (u *Uploader) Close() error {
	err := u.s.Close()
	u.dev.releaseSessionID(u.SessionID())
	return translate("uploader-close", u.SessionID(), err)
}
