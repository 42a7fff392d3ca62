package bitstream

// DTSQueue is the bounded, ordered decode-timestamp queue read(frame)
// drains against, with threshold-based dequeue and reorder-delay
// padding (spec.md §4.5.1, §4.6, C7).
type DTSQueue struct {
	entries  []int64
	lastDTS  int64
	haveLast bool
	interval int64
}

// NewDTSQueue returns an empty DTS FIFO.
func NewDTSQueue() *DTSQueue {
	return &DTSQueue{}
}

// Push registers a DTS at write(packet) time.
func (q *DTSQueue) Push(dts int64) {
	q.entries = append(q.entries, dts)
}

// Len reports how many DTS entries are currently queued.
func (q *DTSQueue) Len() int { return len(q.entries) }

// Front returns the head DTS without removing it, for callers that
// need to pop "whatever is next" rather than a specific expected
// value (spec.md §4.5.1 step 7's plain FIFO drain case).
func (q *DTSQueue) Front() (int64, bool) {
	if len(q.entries) == 0 {
		return 0, false
	}
	return q.entries[0], true
}

// Ready reports whether the queue holds at least minDepth entries, or
// readyToClose is set (spec.md §4.5.1 step 5: "Do NOT read until the
// DTS FIFO holds at least pic_reorder_delay + 1 DTS entries (or
// ready_to_close)").
func (q *DTSQueue) Ready(minDepth int, readyToClose bool) bool {
	return readyToClose || len(q.entries) >= minDepth
}

// PopResult is the outcome of a threshold-gated dequeue.
type PopResult struct {
	DTS    int64
	Padded bool
}

// PopWithThreshold pops the front DTS if it falls within tolerance of
// expected; otherwise, if a prior DTS is known, it pads by the last
// observed inter-frame interval rather than consuming an entry (spec.md
// §4.5.1 step 7: "if not available and the previous DTS is known, pad
// by the last DTS interval"). The caller is expected to increment its
// own pic_reorder_delay counter when Padded is true.
func (q *DTSQueue) PopWithThreshold(expected int64, tolerance int64) PopResult {
	if len(q.entries) > 0 {
		front := q.entries[0]
		if diff := front - expected; diff >= -tolerance && diff <= tolerance {
			q.entries = q.entries[1:]
			q.recordInterval(front)
			return PopResult{DTS: front}
		}
	}

	if q.haveLast {
		padded := q.lastDTS + q.interval
		q.recordInterval(padded)
		return PopResult{DTS: padded, Padded: true}
	}

	// No history to pad from: surface the raw front entry if any, else
	// fall back to the caller's expectation.
	if len(q.entries) > 0 {
		front := q.entries[0]
		q.entries = q.entries[1:]
		q.recordInterval(front)
		return PopResult{DTS: front}
	}
	return PopResult{DTS: expected, Padded: true}
}

func (q *DTSQueue) recordInterval(dts int64) {
	if q.haveLast {
		q.interval = dts - q.lastDTS
	}
	q.lastDTS = dts
	q.haveLast = true
}
