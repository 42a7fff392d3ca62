package xcoder

import (
	"github.com/netint/go-xcoder/internal/dump"
	"github.com/netint/go-xcoder/internal/session"
	"github.com/netint/go-xcoder/internal/validate"
)

// Decoder is a decode session: compressed packets in, raw frames out
// (spec.md §4.5.1).
type Decoder struct {
	dev  *Device
	s    *session.Decoder
	dump *dump.Dir

	scalerSessionID uint16
	hasScaler       bool
}

// OpenDecoder opens a decode session on hwChannel with the given
// sessionID and params. legacyTrailer selects the firmware <= 6.1
// 32-byte metadata trailer layout instead of the current 48-byte one.
// When params.Codec is CodecVP9, a second session id is allocated for
// the internal scaler session VP9 decode requires, owned and closed
// by this Decoder (spec.md §9 "Cyclic structures").
func (d *Device) OpenDecoder(hwChannel uint8, params DecoderParams, legacyTrailer bool) (*Decoder, error) {
	id, err := d.Identify()
	if err != nil {
		return nil, err
	}

	sessionID, err := d.allocSessionID()
	if err != nil {
		return nil, err
	}

	var scalerSessionID uint16
	wantsScaler := params.Codec == validate.CodecVP9
	if wantsScaler {
		scalerSessionID, err = d.allocSessionID()
		if err != nil {
			d.releaseSessionID(sessionID)
			return nil, err
		}
	}

	s, err := session.OpenDecoder(d.dev, sessionID, hwChannel, d.opts.keepAliveTimeout(), params, legacyTrailer, scalerSessionID, id, d.opts.logger())
	if err != nil {
		d.releaseSessionID(sessionID)
		if wantsScaler {
			d.releaseSessionID(scalerSessionID)
		}
		return nil, translate("open-decoder", sessionID, err)
	}
	s.SetObserver(d.opts.observer())

	dec := &Decoder{dev: d, s: s, scalerSessionID: scalerSessionID, hasScaler: wantsScaler}
	if root := d.opts.dumpRoot(); root != "" {
		dir, err := dump.Select(root, sessionID)
		if err != nil {
			d.opts.logger().Warn("stream dump unavailable, continuing without it", "error", err)
		} else {
			dec.dump = dir
		}
	}
	return dec, nil
}

// SessionID returns the bound 7-bit session id.
func (dec *Decoder) SessionID() uint16 { return dec.s.SessionID() }

// AttachedScalerSessionID returns the session id of the internal
// scaler session opened for VP9 decode, and whether one exists.
func (dec *Decoder) AttachedScalerSessionID() (uint16, bool) {
	return dec.s.AttachedScalerSessionID()
}

// State returns the session's current lifecycle state.
func (dec *Decoder) State() session.State { return dec.s.State() }

// Write submits one compressed packet for decode.
func (dec *Decoder) Write(pkt Packet) error {
	if dec.dump != nil {
		if err := dec.dump.WritePacket(pkt.Data); err != nil {
			dec.dev.opts.logger().Warn("stream dump packet mirror failed", "error", err)
		}
	}
	return translate("decoder-write", dec.SessionID(), dec.s.Write(pkt))
}

// Read pulls one decoded frame.
func (dec *Decoder) Read() (Frame, error) {
	f, err := dec.s.Read()
	if err == nil && dec.dump != nil && !f.SequenceChange {
		if derr := dec.dump.WriteFrame(f.Data); derr != nil {
			dec.dev.opts.logger().Warn("stream dump frame mirror failed", "error", derr)
		}
	}
	return f, translate("decoder-read", dec.SessionID(), err)
}

// Drain signals end of input and begins flushing buffered frames.
func (dec *Decoder) Drain() error {
	return translate("decoder-drain", dec.SessionID(), dec.s.Drain())
}

// Close releases the session and its 7-bit id back to the device,
// along with the attached scaler's id if one was opened for VP9
// decode.
func (dec *Decoder) Close() error {
	sessionID := dec.SessionID()
	err := dec.s.Close()
	dec.dev.releaseSessionID(sessionID)
	if dec.hasScaler {
		dec.dev.releaseSessionID(dec.scalerSessionID)
	}
	return translate("decoder-close", sessionID, err)
}
