package xcoder

import (
	"github.com/netint/go-xcoder/internal/hwframe"
	"github.com/netint/go-xcoder/internal/session"
)

// Scaler is a scale/blit session: hardware frames in, resized or
// composited hardware frames out (spec.md §4.5.3).
type Scaler struct {
	dev *Device
	s   *session.Scaler
}

// OpenScaler opens a scaler session on hwChannel. Requesting BlitStack
// on firmware below the minimum that supports it fails with
// ErrCodeUnsupportedFwVersion.
func (d *Device) OpenScaler(hwChannel uint8, params ScalerParams) (*Scaler, error) {
	id, err := d.Identify()
	if err != nil {
		return nil, err
	}

	sessionID, err := d.allocSessionID()
	if err != nil {
		return nil, err
	}

	s, err := session.OpenScaler(d.dev, sessionID, hwChannel, d.opts.keepAliveTimeout(), params, id, d.opts.logger())
	if err != nil {
		d.releaseSessionID(sessionID)
		return nil, translate("open-scaler", sessionID, err)
	}
	s.SetObserver(d.opts.observer())
	return &Scaler{dev: d, s: s}, nil
}

// SessionID returns the bound 7-bit session id.
func (sc *Scaler) SessionID() uint16 { return sc.s.SessionID() }

// State returns the session's current lifecycle state.
func (sc *Scaler) State() session.State { return sc.s.State() }

// AllocFrame blits one output frame per cfg.
func (sc *Scaler) AllocFrame(cfg FrameConfig) (hwframe.Descriptor, error) {
	d, err := sc.s.AllocFrame(cfg)
	return d, translate("scaler-alloc-frame", sc.SessionID(), err)
}

// MultiConfigFrame blits up to constants.NMaxOutputs output frames in
// one call, one FrameConfig per output.
func (sc *Scaler) MultiConfigFrame(cfgs []FrameConfig) (hwframe.Set, error) {
	set, err := sc.s.MultiConfigFrame(cfgs)
	return set, translate("scaler-multi-config-frame", sc.SessionID(), err)
}

// Close releases the session and its 7-bit id back to the device.
func (sc *Scaler) Close() error {
	err := sc.s.Close()
	sc.dev.releaseSessionID(sc.SessionID())
	return translate("scaler-close", sc.SessionID(), err)
}
