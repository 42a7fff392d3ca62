package session

import "errors"

// Sentinel errors a caller (the top-level xcoder package) matches
// with errors.Is to translate into its own closed ErrorCode taxonomy
// (spec.md §7). Kept independent of the top-level package's error
// type to avoid an import cycle: internal/session cannot depend on
// the package that depends on it.
var (
	ErrInvalidSession = errors.New("session: invalid or closed")
	ErrWriteBufferFull = errors.New("session: write buffer full")
	ErrEndOfStream     = errors.New("session: end of stream")
	ErrRetry           = errors.New("session: transient, retry")
	ErrVpuRecovery     = errors.New("session: vpu recovery in progress")
	ErrWrongState      = errors.New("session: operation not valid in current state")
	ErrUnsupportedFirmware = errors.New("session: firmware version does not support this feature")
)
