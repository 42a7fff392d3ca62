// Package classify implements the error classifier (C4): it turns a
// query-session-stats response into one of a closed set of verdicts
// per the decision table in spec.md §4.3.
package classify

import (
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/status"
)

// Verdict is the classifier's closed output set.
type Verdict int

const (
	OK Verdict = iota
	Retry
	InvalidSession
	FatalSession
	FatalPersistent
	VpuRecovery
)

func (v Verdict) String() string {
	switch v {
	case OK:
		return "ok"
	case Retry:
		return "retry"
	case InvalidSession:
		return "invalid-session"
	case FatalSession:
		return "fatal-session"
	case FatalPersistent:
		return "fatal-persistent"
	case VpuRecovery:
		return "vpu-recovery"
	default:
		return "unknown"
	}
}

// fatalPersistentErrs is the set of last_err values that are always
// fatal and persistent, independent of err_count (spec.md §4.3).
var fatalPersistentErrs = map[status.LastErr]bool{
	status.LastErrResourceEmpty:       true,
	status.LastErrResourceNotFound:    true,
	status.LastErrVpuRsrcInsufficient: true,
	status.LastErrVpuGeneralError:     true,
}

// Classify maps a stats response to a Verdict. priorTimestamp is the
// session_timestamp recorded at open; haveTimestamp reports whether
// one has been recorded yet, and while it is false a timestamp
// mismatch cannot be declared.
func Classify(s status.Stats, priorTimestamp uint64, haveTimestamp bool) Verdict {
	if s.LastErr == status.LastErrVpuRecovery {
		return VpuRecovery
	}
	if haveTimestamp && s.SessionTimestamp != priorTimestamp {
		return InvalidSession
	}
	if fatalPersistentErrs[s.LastErr] {
		return FatalPersistent
	}
	if s.ErrCount >= constants.XcoderFailuresMax {
		return FatalPersistent
	}
	if s.LastRC == 0 {
		return OK
	}
	return Retry
}

// IsFatal reports whether a verdict should cause the session to be
// marked invalid (spec.md §4.3: "Fatal classifications must cause the
// session to be marked INVALID").
func (v Verdict) IsFatal() bool {
	switch v {
	case InvalidSession, FatalSession, FatalPersistent:
		return true
	default:
		return false
	}
}

// CountsAsError reports whether a verdict increments rc_error_count.
// Every non-OK classification counts except VpuRecovery (spec.md
// §4.3).
func (v Verdict) CountsAsError() bool {
	return v != OK && v != VpuRecovery
}

// ErrorCounter tracks rc_error_count for a single session: it
// increments on every non-OK, non-VpuRecovery verdict and resets on
// OK.
type ErrorCounter struct {
	count uint32
}

// Observe records a verdict and returns the updated count.
func (c *ErrorCounter) Observe(v Verdict) uint32 {
	if v == OK {
		c.count = 0
	} else if v.CountsAsError() {
		c.count++
	}
	return c.count
}

// Count returns the current rc_error_count.
func (c *ErrorCounter) Count() uint32 { return c.count }
