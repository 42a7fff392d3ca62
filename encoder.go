package xcoder

import (
	"github.com/netint/go-xcoder/internal/dump"
	"github.com/netint/go-xcoder/internal/session"
)

// Encoder is an encode session: raw frames in, compressed packets out
// (spec.md §4.5.2).
type Encoder struct {
	dev  *Device
	s    *session.Encoder
	dump *dump.Dir
}

// OpenEncoder opens an encode session on hwChannel. supportsSSIM
// selects whether the per-packet metadata header carries SSIM scores
// (spec.md §4.5.2).
func (d *Device) OpenEncoder(hwChannel uint8, params EncoderParams, supportsSSIM bool) (*Encoder, error) {
	id, err := d.Identify()
	if err != nil {
		return nil, err
	}

	sessionID, err := d.allocSessionID()
	if err != nil {
		return nil, err
	}

	s, err := session.OpenEncoder(d.dev, sessionID, hwChannel, d.opts.keepAliveTimeout(), params, supportsSSIM, id, d.opts.logger())
	if err != nil {
		d.releaseSessionID(sessionID)
		return nil, translate("open-encoder", sessionID, err)
	}
	s.SetObserver(d.opts.observer())

	enc := &Encoder{dev: d, s: s}
	if root := d.opts.dumpRoot(); root != "" {
		dir, err := dump.Select(root, sessionID)
		if err != nil {
			d.opts.logger().Warn("stream dump unavailable, continuing without it", "error", err)
		} else {
			enc.dump = dir
		}
	}
	return enc, nil
}

// SessionID returns the bound 7-bit session id.
func (enc *Encoder) SessionID() uint16 { return enc.s.SessionID() }

// State returns the session's current lifecycle state.
func (enc *Encoder) State() session.State { return enc.s.State() }

// Write submits one raw frame for encode.
func (enc *Encoder) Write(f Frame) error {
	if enc.dump != nil {
		if err := enc.dump.WriteFrame(f.Data); err != nil {
			enc.dev.opts.logger().Warn("stream dump frame mirror failed", "error", err)
		}
	}
	return translate("encoder-write", enc.SessionID(), enc.s.Write(f))
}

// Read pulls one compressed packet.
func (enc *Encoder) Read() (Packet, error) {
	p, err := enc.s.Read()
	if err == nil && enc.dump != nil {
		if derr := enc.dump.WritePacket(p.Data); derr != nil {
			enc.dev.opts.logger().Warn("stream dump packet mirror failed", "error", derr)
		}
	}
	return p, translate("encoder-read", enc.SessionID(), err)
}

// Drain signals end of input and begins flushing buffered packets.
func (enc *Encoder) Drain() error {
	return translate("encoder-drain", enc.SessionID(), enc.s.Drain())
}

// Close releases the session and its 7-bit id back to the device.
func (enc *Encoder) Close() error {
	err := enc.s.Close()
	enc.dev.releaseSessionID(enc.SessionID())
	return translate("encoder-close", enc.SessionID(), err)
}
