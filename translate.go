package xcoder

import (
	"errors"

	"github.com/netint/go-xcoder/internal/session"
	"github.com/netint/go-xcoder/internal/validate"
)

// translate maps an internal/session or internal/validate error into
// the closed *Error taxonomy spec.md §7 defines, scoped to sessionID
// and op. Any other error (I/O failures bubbling up from the block
// layer) becomes ErrCodeIO.
func translate(op string, sessionID uint16, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, session.ErrInvalidSession):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeInvalidSession, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrWriteBufferFull):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeWriteBufferFull, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrEndOfStream):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeEOS, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrRetry):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeRetryExhausted, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrVpuRecovery):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeVpuRecovery, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrWrongState):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeInvalidParam, Msg: err.Error(), Inner: err}
	case errors.Is(err, session.ErrUnsupportedFirmware):
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeUnsupportedFwVersion, Msg: err.Error(), Inner: err}
	}

	var ve *validate.Error
	if errors.As(err, &ve) {
		return &Error{Op: op, SessionID: sessionID, Code: ErrCodeInvalidParam, Msg: ve.Error(), Inner: err}
	}

	return &Error{Op: op, SessionID: sessionID, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
}
