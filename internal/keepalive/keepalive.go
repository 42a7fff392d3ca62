// Package keepalive runs the per-session background task (C5) that
// keeps the accelerator from timing out a session: it issues the
// keep-alive LBA write on an interval and watches the returned status
// for a fatal classification (spec.md §4.4).
package keepalive

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/netint/go-xcoder/internal/classify"
	"github.com/netint/go-xcoder/internal/lba"
	"github.com/netint/go-xcoder/internal/logging"
	"github.com/netint/go-xcoder/internal/status"
)

// Sender issues the keep-alive write and the follow-up stats read for
// a single session. Implemented by *session.Base in production, by a
// fake in tests.
type Sender interface {
	SendKeepAlive() error
	QueryStats() (status.Stats, error)
}

// Task is one session's keep-alive goroutine.
type Task struct {
	sessionID uint16
	sender    Sender
	interval  time.Duration
	logger    *logging.Logger

	counter     classify.ErrorCounter
	timestamp   uint64
	haveStamp   bool
	closeThread atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// Start spawns the keep-alive goroutine for a session and returns a
// handle. timeout is the caller-configured keep-alive timeout;
// the task fires at max(1s, timeout)/3 per spec.md §4.4.
func Start(sessionID uint16, sender Sender, timeout time.Duration, priorTimestamp uint64, logger *logging.Logger) *Task {
	if logger == nil {
		logger = logging.Default()
	}
	interval := timeout / 3
	if interval < time.Second/3 {
		interval = time.Second / 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		sessionID: sessionID,
		sender:    sender,
		interval:  interval,
		logger:    logger.WithSession(sessionID, "session").WithOp(lba.OpKeepAlive.String(), 0),
		timestamp: priorTimestamp,
		haveStamp: true,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go t.run(ctx)
	return t
}

// ClosedByAccelerator reports whether a fatal classification forced
// this task to exit before the foreground requested cancellation.
func (t *Task) ClosedByAccelerator() bool {
	return t.closeThread.Load()
}

// Stop requests cancellation and waits for the goroutine to exit.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	raisePriority()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.tick() {
				return
			}
		}
	}
}

// tick sends one keep-alive round and returns true if the task must
// exit because of a fatal classification.
func (t *Task) tick() bool {
	if err := t.sender.SendKeepAlive(); err != nil {
		t.logger.WithError(err).Warn("keep-alive write failed")
		return false
	}
	stats, err := t.sender.QueryStats()
	if err != nil {
		t.logger.WithError(err).Warn("keep-alive stats read failed")
		return false
	}

	verdict := classify.Classify(stats, t.timestamp, t.haveStamp)
	t.counter.Observe(verdict)
	if verdict == classify.OK {
		t.timestamp = stats.SessionTimestamp
		t.haveStamp = true
	}

	if verdict.IsFatal() {
		t.logger.Warn("keep-alive observed fatal classification, closing thread", "verdict", verdict.String())
		t.closeThread.Store(true)
		return true
	}
	return false
}

// raisePriority attempts to raise the scheduling priority of the
// keep-alive goroutine's OS thread. Failure is not fatal: the task
// proceeds at default priority (spec.md §4.4).
func raisePriority() {
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, -5)
}
