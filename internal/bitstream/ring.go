// Package bitstream implements the bitstream ring and DTS FIFO that
// recover presentation timestamps for frames read back from a decoder
// session (spec.md §4.6, C6/C7).
package bitstream

import "github.com/netint/go-xcoder/internal/constants"

// RingSize is the ring capacity N (power of two, spec.md §4.6).
const RingSize = constants.BitstreamRingSize

// wrapMod is 2^32: the accelerator's cumulative byte-offset counter is
// a 32-bit register, so every offset the host tracks is taken modulo
// this value before it is ever compared against a reported
// frame_offset (spec.md §4.6's wrap policy).
const wrapMod = uint64(1) << 32

// Slot is one ring entry: a packet's pts, its flags, and the
// cumulative byte offset range [min, offset) it occupies in the
// bitstream (mod 2^32, so offset can be <= min when the packet
// straddles a wrap — the interval is then circular), plus an optional
// custom-SEI payload transferred out on a successful PTS match.
type Slot struct {
	Valid     bool
	PTS       int64
	Flags     uint32
	Min       uint32
	Offset    uint32
	CustomSEI []byte
}

// contains reports whether v falls in this slot's half-open interval,
// accounting for the circular case where Offset <= Min because the
// packet's byte range straddled a 2^32 wrap.
func (s *Slot) contains(v uint32) bool {
	if s.Offset > s.Min {
		return v >= s.Min && v < s.Offset
	}
	// Wrapped: the interval is [Min, 2^32) ∪ [0, Offset).
	return v >= s.Min || v < s.Offset
}

// Ring is the fixed-capacity, power-of-two packet index described in
// spec.md §4.6. It is not safe for concurrent use; callers serialize
// access per session the way every other per-session structure does.
type Ring struct {
	slots     [RingSize]Slot
	writeIdx  int
	cumOffset uint64 // ever-increasing; masked to 32 bits per slot on insert
}

// NewRing returns an empty ring.
func NewRing() *Ring {
	return &Ring{}
}

// Insert records a packet at the current write position and advances
// it modulo RingSize. packetLen is the packet's unpadded byte length,
// so consecutive slot offsets differ by exactly that length (modulo
// 2^32). Returns the freed slot's
// custom-SEI buffer, if any, so the caller can release it before this
// call overwrites the slot (spec.md §4.5.1 invariant).
func (r *Ring) Insert(pts int64, flags uint32, packetLen uint64, customSEI []byte) []byte {
	freed := r.slots[r.writeIdx].CustomSEI

	min := uint32(r.cumOffset % wrapMod)
	r.cumOffset += packetLen
	offset := uint32(r.cumOffset % wrapMod)

	r.slots[r.writeIdx] = Slot{
		Valid:     true,
		PTS:       pts,
		Flags:     flags,
		Min:       min,
		Offset:    offset,
		CustomSEI: customSEI,
	}
	r.writeIdx = (r.writeIdx + 1) % RingSize

	return freed
}

// LookupResult is the outcome of a FindByOffset call.
type LookupResult struct {
	Found     bool
	PTS       int64
	Flags     uint32
	CustomSEI []byte
}

// FindByOffset binary-searches the ring, treated as a rotated array of
// half-open intervals [min, offset), for the unique slot containing
// frameOffset. On a hit it transfers ownership of the slot's
// custom-SEI buffer to the caller (the ring no longer owns it).
func (r *Ring) FindByOffset(frameOffset uint32) LookupResult {
	idx := r.search(frameOffset)
	if idx < 0 {
		return LookupResult{}
	}
	s := &r.slots[idx]
	result := LookupResult{Found: true, PTS: s.PTS, Flags: s.Flags, CustomSEI: s.CustomSEI}
	s.CustomSEI = nil
	return result
}

// search performs the rotated-array binary search described in
// spec.md §4.6: logical order [writeIdx, writeIdx+1, ..., writeIdx-1]
// (oldest to newest) is ascending in Min, except at the single point
// where a packet's own interval wrapped past 2^32 (handled by
// Slot.contains) and the point where the ring itself has not fully
// filled yet (a contiguous run of invalid slots). Returns -1 if
// frameOffset falls in no valid, populated slot's interval.
func (r *Ring) search(frameOffset uint32) int {
	phys := func(i int) int { return (r.writeIdx + i) % RingSize }

	lo, hi := 0, RingSize-1
	for lo <= hi {
		for lo <= hi && !r.slots[phys(lo)].Valid {
			lo++
		}
		if lo > hi {
			break
		}

		mid := (lo + hi) / 2
		s := &r.slots[phys(mid)]
		if !s.Valid {
			lo = mid + 1
			continue
		}
		if s.contains(frameOffset) {
			return phys(mid)
		}

		loSlot := &r.slots[phys(lo)]
		if loSlot.Min <= s.Min {
			// Left half [lo, mid] is sorted ascending.
			if frameOffset >= loSlot.Min && frameOffset < s.Min {
				hi = mid - 1
			} else {
				lo = mid + 1
			}
		} else {
			// Right half (mid, hi] is sorted ascending.
			hiSlot := &r.slots[phys(hi)]
			if frameOffset >= s.Offset && frameOffset < hiSlot.Offset {
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
	}
	return -1
}
