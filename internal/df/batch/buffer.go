// Package batch buffers incoming measurements in timestamp order so the
// engine processes coherent windows even when the capture layer delivers
// observations slightly out of order.
package batch

import (
	"fmt"
	"sync"

	"github.com/rfrecon/wardrive-df/internal/df"
)

// node is an internal linked list node for the measurement buffer.
type node struct {
	m    df.Measurement
	next *node
}

// Buffer is a thread-safe, timestamp-ordered measurement buffer. It holds
// up to capacity measurements and releases the oldest flushCount of them
// when flushed, which keeps a short reordering window in the buffer while
// the rest flows on to processing.
type Buffer struct {
	capacity   int // maximum number of measurements to store
	flushCount int // number of measurements released per flush

	mu   sync.Mutex
	head *node
	size int
}

// NewBuffer creates a measurement buffer. The buffer stores up to capacity
// measurements and releases flushCount of them per Flush. Returns an error
// if the parameters are invalid.
func NewBuffer(capacity, flushCount int) (*Buffer, error) {
	if capacity <= 0 || flushCount <= 0 || flushCount > capacity {
		return nil, fmt.Errorf("invalid buffer parameters: capacity=%d, flushCount=%d", capacity, flushCount)
	}
	return &Buffer{
		capacity:   capacity,
		flushCount: flushCount,
	}, nil
}

// Insert adds a measurement to the buffer in timestamp order. Equal
// timestamps keep their insertion order.
func (b *Buffer) Insert(m df.Measurement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || m.Timestamp.Before(b.head.m.Timestamp) {
		b.head = &node{m: m, next: b.head}
		b.size++
		return
	}

	current := b.head
	for current.next != nil && !m.Timestamp.Before(current.next.m.Timestamp) {
		current = current.next
	}
	current.next = &node{m: m, next: current.next}
	b.size++
}

// IsFull returns true if the buffer has reached its capacity.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size >= b.capacity
}

// Size returns the current number of buffered measurements.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Flush removes and returns the oldest measurements from the buffer.
// Returns nil if the buffer is empty. The number of measurements returned
// is the flush count, plus any overflow beyond capacity.
func (b *Buffer) Flush() []df.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || b.size == 0 {
		return nil
	}

	count := b.flushCount
	if b.size > b.capacity {
		count += b.size - b.capacity
	}
	count = min(count, b.size)

	results := make([]df.Measurement, 0, count)
	current := b.head
	for i := 0; i < count && current != nil; i++ {
		results = append(results, current.m)
		current = current.next
	}

	b.head = current
	b.size -= len(results)
	return results
}

// DrainAll removes and returns all buffered measurements in timestamp
// order. Returns nil if the buffer is empty.
func (b *Buffer) DrainAll() []df.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == nil || b.size == 0 {
		return nil
	}

	results := make([]df.Measurement, 0, b.size)
	current := b.head
	for current != nil {
		results = append(results, current.m)
		current = current.next
	}

	b.head = nil
	b.size = 0
	return results
}

// Clear removes all measurements from the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = nil
	b.size = 0
}
