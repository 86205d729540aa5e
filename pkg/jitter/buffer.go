// Package jitter implements a fixed-size ring buffer that absorbs
// network-induced delay variance between a secure audio transport and
// playback. Packets come out in the order they were pushed; the buffer
// does not reorder by sequence number and does not attempt to recover
// lost packets (that is the codec's job via FEC/PLC).
package jitter

import "math"

// MinSlots and MaxSlots bound the ring regardless of the computed
// target size, so a pathological target delay can't allocate an
// unbounded or zero-length buffer.
const (
	MinSlots = 5
	MaxSlots = 50
)

// Size computes buffer_size = clamp(ceil(targetDelayMs/1000 * sampleRate / frameSize), MinSlots, MaxSlots).
func Size(targetDelayMs, sampleRate, frameSize int) int {
	raw := math.Ceil(float64(targetDelayMs) / 1000 * float64(sampleRate) / float64(frameSize))
	n := int(raw)
	if n < MinSlots {
		return MinSlots
	}
	if n > MaxSlots {
		return MaxSlots
	}
	return n
}

// Buffer is a ring of packets indexed by monotonically increasing write
// and read counters. It is not safe for concurrent use; callers
// serialize access themselves (the audio pipeline drives it from a
// single goroutine per direction).
type Buffer[T any] struct {
	slots    []T
	occupied []bool
	writeIdx uint64
	readIdx  uint64
}

// NewBuffer allocates a ring with the given slot count.
func NewBuffer[T any](size int) *Buffer[T] {
	if size < MinSlots {
		size = MinSlots
	}
	if size > MaxSlots {
		size = MaxSlots
	}
	return &Buffer[T]{
		slots:    make([]T, size),
		occupied: make([]bool, size),
	}
}

// Push writes packet at writeIdx mod size and advances writeIdx.
func (b *Buffer[T]) Push(packet T) {
	idx := int(b.writeIdx % uint64(len(b.slots)))
	b.slots[idx] = packet
	b.occupied[idx] = true
	b.writeIdx++
}

// Pop returns the slot at readIdx mod size if writeIdx > readIdx,
// advancing readIdx; otherwise it returns the zero value and false.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	if b.writeIdx <= b.readIdx {
		return zero, false
	}
	idx := int(b.readIdx % uint64(len(b.slots)))
	packet := b.slots[idx]
	b.occupied[idx] = false
	b.readIdx++
	return packet, true
}

// Depth returns writeIdx - readIdx, the number of packets currently
// buffered awaiting playback.
func (b *Buffer[T]) Depth() uint64 {
	return b.writeIdx - b.readIdx
}

// Clear empties all slots and resets both indices to zero.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.slots {
		b.slots[i] = zero
		b.occupied[i] = false
	}
	b.writeIdx = 0
	b.readIdx = 0
}

// Len returns the number of slots in the ring.
func (b *Buffer[T]) Len() int {
	return len(b.slots)
}
