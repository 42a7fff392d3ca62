package keepalive

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netint/go-xcoder/internal/status"
)

type fakeSender struct {
	writeCalls atomic.Int32
	statsFn    func() (status.Stats, error)
}

func (f *fakeSender) SendKeepAlive() error {
	f.writeCalls.Add(1)
	return nil
}

func (f *fakeSender) QueryStats() (status.Stats, error) {
	return f.statsFn()
}

func TestTaskExitsOnFatalClassification(t *testing.T) {
	timestamp := uint64(1)
	sender := &fakeSender{
		statsFn: func() (status.Stats, error) {
			return status.Stats{LastRC: -1, LastErr: status.LastErrResourceEmpty, SessionTimestamp: timestamp}, nil
		},
	}

	task := Start(7, sender, 9*time.Millisecond, timestamp, nil)
	defer task.Stop()

	require.Eventually(t, task.ClosedByAccelerator, time.Second, time.Millisecond)
}

func TestTaskKeepsRunningOnOK(t *testing.T) {
	timestamp := uint64(1)
	sender := &fakeSender{
		statsFn: func() (status.Stats, error) {
			return status.Stats{LastRC: 0, SessionTimestamp: timestamp}, nil
		},
	}

	task := Start(7, sender, 9*time.Millisecond, timestamp, nil)
	require.Eventually(t, func() bool { return sender.writeCalls.Load() >= 2 }, time.Second, time.Millisecond)
	require.False(t, task.ClosedByAccelerator())
	task.Stop()
}
