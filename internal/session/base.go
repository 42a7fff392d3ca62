// Package session implements the five session state machines —
// decoder, encoder, scaler, uploader, AI — that drive a single
// accelerator session through open/configure/stream/drain/close
// (spec.md §4.5, C9). Base carries everything every flavor shares:
// the session id, the keep-alive task, the per-context mutex, and the
// write-then-query-stats command pattern every non-query LBA command
// requires (spec.md §4.3).
package session

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/netint/go-xcoder/internal/block"
	"github.com/netint/go-xcoder/internal/classify"
	"github.com/netint/go-xcoder/internal/constants"
	"github.com/netint/go-xcoder/internal/keepalive"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/logging"
	"github.com/netint/go-xcoder/internal/metrics"
	"github.com/netint/go-xcoder/internal/status"
)

// Base is the shared context every session flavor embeds. It is not
// used directly by callers; Decoder/Encoder/Scaler/Uploader/AI each
// wrap it with flavor-specific state.
type Base struct {
	mu sync.Mutex

	dev       block.Interface
	sessionID uint16
	hwChannel uint8
	logger    *logging.Logger

	state State

	timestamp     uint64
	haveTimestamp bool
	counter       classify.ErrorCounter

	keepalive *keepalive.Task
	invalid   bool

	observer metrics.Observer

	scratch []byte
}

// NewBase constructs a session context bound to sessionID on dev. It
// does not itself issue any I/O; call Open to do that.
func NewBase(dev block.Interface, sessionID uint16, hwChannel uint8, logger *logging.Logger) *Base {
	if logger == nil {
		logger = logging.Default()
	}
	return &Base{
		dev:       dev,
		sessionID: sessionID,
		hwChannel: hwChannel,
		logger:    logger.WithSession(sessionID, "session"),
		observer:  metrics.NoOpObserver{},
		scratch:   block.AlignedBuffer(constants.PageSize),
	}
}

// SessionID returns the bound session id.
func (b *Base) SessionID() uint16 { return b.sessionID }

// SetObserver installs the metrics.Observer every subsequent command,
// read, retry, and keep-alive heartbeat on this session reports to.
// Passing nil restores the no-op observer.
func (b *Base) SetObserver(o metrics.Observer) {
	if o == nil {
		o = metrics.NoOpObserver{}
	}
	b.mu.Lock()
	b.observer = o
	b.mu.Unlock()
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Lock/Unlock expose the context mutex to flavor-specific sessions so
// a whole multi-step operation (e.g. decoder write's six-step
// sequence) executes as one critical section, per spec.md §5's
// "a command and its paired status-query read are atomic" and "every
// poll loop releases the per-context mutex before sleeping" rules.
func (b *Base) Lock()   { b.mu.Lock() }
func (b *Base) Unlock() { b.mu.Unlock() }

// Invalid reports whether this session has been declared invalid,
// either by a fatal classification observed in the foreground or by
// the keep-alive task (spec.md §4.3's invariant: any caller attempting
// another command after a fatal classification receives
// InvalidSession without an I/O round-trip).
func (b *Base) Invalid() bool {
	if b.invalid {
		return true
	}
	if b.keepalive != nil && b.keepalive.ClosedByAccelerator() {
		b.invalid = true
	}
	return b.invalid
}

// CheckInvalid returns ErrInvalidSession if the session is no longer
// usable, without performing any I/O.
func (b *Base) CheckInvalid() error {
	if b.Invalid() {
		return ErrInvalidSession
	}
	return nil
}

// Open issues the open-session command, records session_id/timestamp
// on success, pushes the keep-alive timeout and (on firmware >= 6.1)
// the SW-version-announce, then spawns the keep-alive task (spec.md
// §3 Lifecycle, §4.5).
func (b *Base) Open(timeout time.Duration, id status.Identify) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := lba.OpenSession(b.sessionID, b.hwChannel)
	if err := b.dev.WriteAt(addr, b.scratch); err != nil {
		return fmt.Errorf("session: open-session write: %w", err)
	}
	if err := b.queryAndClassifyLocked(lba.OpOpenSession.String()); err != nil {
		return err
	}

	if err := b.pushKeepAliveTimeout(timeout); err != nil {
		return err
	}
	if id.FirmwareVersionCode() >= constants.MinFirmwareSWVersionAnnounce {
		if err := b.pushSWVersionAnnounce(); err != nil {
			return err
		}
	}

	b.keepalive = keepalive.Start(b.sessionID, b, timeout, b.timestamp, b.logger)
	b.state = StateOpened
	return nil
}

// pushKeepAliveTimeout writes the keep-alive timeout in microseconds,
// one little-endian u64 (spec.md §6 — the one payload on the wire
// that is not big-endian).
func (b *Base) pushKeepAliveTimeout(timeout time.Duration) error {
	payload := block.AlignedBuffer(constants.PageSize)
	binary.LittleEndian.PutUint64(payload[0:8], uint64(timeout.Microseconds()))
	addr := lba.KeepAliveTimeoutSet(b.sessionID, b.hwChannel)
	return b.ExecCommand(lba.OpKeepAliveTimeoutSet.String(), addr, payload)
}

// pushSWVersionAnnounce writes this library's wire-protocol version so
// firmware >= 6.1 accepts the commands that follow (spec.md §6:
// "Required; firmware rejects subsequent commands otherwise").
func (b *Base) pushSWVersionAnnounce() error {
	payload := block.AlignedBuffer(constants.PageSize)
	copy(payload[0:8], swVersionAnnounce)
	addr := lba.SWVersionAnnounce(b.sessionID, b.hwChannel)
	return b.ExecCommand(lba.OpSWVersionAnnounce.String(), addr, payload)
}

// swVersionAnnounce is the 8-byte ASCII SW version this driver reports.
var swVersionAnnounce = []byte("GOXC0100")

// Close issues close-session in a bounded retry loop, then stops the
// keep-alive task (spec.md §4.5 lifecycle, §4.4).
func (b *Base) Close() error {
	b.mu.Lock()
	addr := lba.CloseSession(b.sessionID, b.hwChannel)

	var lastErr error
	for i := 0; i < constants.SessionCloseRetryMax; i++ {
		if err := b.dev.WriteAt(addr, b.scratch); err != nil {
			lastErr = fmt.Errorf("session: close-session write: %w", err)
			continue
		}
		if err := b.queryAndClassifyLocked(lba.OpCloseSession.String()); err != nil {
			lastErr = err
			if err == ErrInvalidSession {
				break
			}
			continue
		}
		lastErr = nil
		break
	}
	b.state = StateClosed
	b.invalid = true
	b.mu.Unlock()

	if b.keepalive != nil {
		b.keepalive.Stop()
	}
	return lastErr
}

// SendKeepAlive implements keepalive.Sender.
func (b *Base) SendKeepAlive() error {
	addr := lba.KeepAlive(b.sessionID, b.hwChannel)
	err := b.dev.WriteAt(addr, block.AlignedBuffer(constants.PageSize))
	b.observer.ObserveKeepAlive(b.sessionID, err == nil)
	return err
}

// QueryStats implements keepalive.Sender: a raw, unclassified read.
func (b *Base) QueryStats() (status.Stats, error) {
	addr := lba.QuerySessionStats(b.sessionID, b.hwChannel)
	buf, err := b.dev.ReadAt(addr, constants.PageSize)
	if err != nil {
		return status.Stats{}, fmt.Errorf("session: query-session-stats read: %w", err)
	}
	return status.ParseStats(buf)
}

// ExecCommand writes payload (page-rounded by the caller) to addr,
// then performs the mandatory paired query-session-stats read and
// classifies the result (spec.md §4.3: "After every non-query command,
// the caller MUST issue one query-session-stats read"). Callers
// already hold the context mutex; ExecCommand does not acquire it.
func (b *Base) ExecCommand(op string, addr uint32, payload []byte) error {
	if err := b.CheckInvalid(); err != nil {
		return err
	}
	if err := b.dev.WriteAt(addr, payload); err != nil {
		b.observer.ObserveWrite(b.sessionID, len(payload), false)
		return fmt.Errorf("session: %s write: %w", op, err)
	}
	err := b.queryAndClassifyLocked(op)
	b.observer.ObserveWrite(b.sessionID, len(payload), err == nil)
	return err
}

// ExecQuery reads n bytes at addr without a follow-up stats query:
// the query commands are self-reporting (spec.md §4.3).
func (b *Base) ExecQuery(op string, addr uint32, n int) ([]byte, error) {
	if err := b.CheckInvalid(); err != nil {
		return nil, err
	}
	buf, err := b.dev.ReadAt(addr, n)
	if err != nil {
		return nil, fmt.Errorf("session: %s read: %w", op, err)
	}
	return buf, nil
}

// ExecRead reads n bytes at addr and then performs the mandatory
// paired query-session-stats read: unlike the query-* ops,
// read-instance is not self-reporting (spec.md §4.3).
func (b *Base) ExecRead(op string, addr uint32, n int) ([]byte, error) {
	if err := b.CheckInvalid(); err != nil {
		return nil, err
	}
	buf, err := b.dev.ReadAt(addr, n)
	if err != nil {
		b.observer.ObserveRead(b.sessionID, 0, false)
		return nil, fmt.Errorf("session: %s read: %w", op, err)
	}
	if err := b.queryAndClassifyLocked(op); err != nil {
		b.observer.ObserveRead(b.sessionID, 0, false)
		return nil, err
	}
	b.observer.ObserveRead(b.sessionID, len(buf), true)
	return buf, nil
}

func (b *Base) queryAndClassifyLocked(op string) error {
	addr := lba.QuerySessionStats(b.sessionID, b.hwChannel)
	buf, err := b.dev.ReadAt(addr, constants.PageSize)
	if err != nil {
		return fmt.Errorf("session: %s query-session-stats read: %w", op, err)
	}
	stats, err := status.ParseStats(buf)
	if err != nil {
		return fmt.Errorf("session: %s parse stats: %w", op, err)
	}

	verdict := classify.Classify(stats, b.timestamp, b.haveTimestamp)
	b.counter.Observe(verdict)

	switch verdict {
	case classify.OK:
		b.timestamp = stats.SessionTimestamp
		b.haveTimestamp = true
		return nil
	case classify.VpuRecovery:
		b.logger.Warn("vpu recovery in progress", "op", op)
		b.observer.ObserveErrorClassified(b.sessionID, false)
		return ErrVpuRecovery
	case classify.Retry:
		b.observer.ObserveRetry(b.sessionID, op)
		return ErrRetry
	default:
		b.invalid = true
		b.logger.Warn("session declared invalid", "op", op, "verdict", verdict.String())
		b.observer.ObserveErrorClassified(b.sessionID, true)
		return ErrInvalidSession
	}
}
