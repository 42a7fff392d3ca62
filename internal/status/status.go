// Package status parses the fixed-layout payloads the accelerator
// returns on query-session-stats and identify-device reads (spec.md
// §4.3, §6). Every multi-byte integer arrives in accelerator byte
// order and is unconditionally byte-swapped to host order here.
package status

import "encoding/binary"

// LastErr is the closed set of last_err values the classifier keys
// off of (spec.md §4.3, §7).
type LastErr uint32

const (
	LastErrNone                LastErr = 0
	LastErrResourceEmpty       LastErr = 1
	LastErrResourceNotFound    LastErr = 2
	LastErrVpuRsrcInsufficient LastErr = 3
	LastErrVpuGeneralError     LastErr = 4
	LastErrVpuRecovery         LastErr = 5
)

// Stats is the query-session-stats response: session_id, err_count,
// last_tx_id, last_rc, last_err_tx_id, last_err, session_timestamp.
type Stats struct {
	SessionID       uint16
	ErrCount        uint32
	LastTxID        uint32
	LastRC          int32
	LastErrTxID     uint32
	LastErr         LastErr
	SessionTimestamp uint64
}

// statsSize is the on-wire size of the query-session-stats struct.
const statsSize = 2 + 4 + 4 + 4 + 4 + 4 + 8

// ParseStats decodes a query-session-stats response. buf must be at
// least statsSize bytes (callers typically hand it a full page; only
// the prefix is read).
func ParseStats(buf []byte) (Stats, error) {
	if len(buf) < statsSize {
		return Stats{}, ErrShortBuffer
	}
	be := binary.BigEndian // accelerator byte order, swapped to host below
	var s Stats
	s.SessionID = be.Uint16(buf[0:2])
	s.ErrCount = be.Uint32(buf[2:6])
	s.LastTxID = be.Uint32(buf[6:10])
	s.LastRC = int32(be.Uint32(buf[10:14]))
	s.LastErrTxID = be.Uint32(buf[14:18])
	s.LastErr = LastErr(be.Uint32(buf[18:22]))
	s.SessionTimestamp = be.Uint64(buf[22:30])
	return s, nil
}

// ErrShortBuffer is returned when a payload is too small to contain
// the structure being parsed.
var ErrShortBuffer = shortBufferError("status: buffer too short")

type shortBufferError string

func (e shortBufferError) Error() string { return string(e) }
