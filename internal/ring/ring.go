// Package ring provides a fixed-capacity FIFO that drops new values when full.
package ring

// Buffer is a fixed-capacity ring buffer. It never overwrites unread entries:
// a Push on a full buffer drops the new value and counts it.
//
// Buffer is not safe for concurrent use; the owner serialises access.
type Buffer[T any] struct {
	data    []T
	head    int // next read position
	tail    int // next write position
	count   int
	dropped uint64
}

// New creates a Buffer with the given capacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends v. It reports false, and increments the drop counter, if the
// buffer was full.
func (b *Buffer[T]) Push(v T) bool {
	if b.count == len(b.data) {
		b.dropped++
		return false
	}
	b.data[b.tail] = v
	b.tail++
	if b.tail == len(b.data) {
		b.tail = 0
	}
	b.count++
	return true
}

// PopUpTo moves up to len(dst) values into dst in FIFO order and returns how
// many were moved.
func (b *Buffer[T]) PopUpTo(dst []T) int {
	n := len(dst)
	if n > b.count {
		n = b.count
	}
	for i := 0; i < n; i++ {
		dst[i] = b.data[b.head]
		var zero T
		b.data[b.head] = zero
		b.head++
		if b.head == len(b.data) {
			b.head = 0
		}
	}
	b.count -= n
	return n
}

// PopAll removes and returns every queued value in FIFO order.
func (b *Buffer[T]) PopAll() []T {
	out := make([]T, b.count)
	b.PopUpTo(out)
	return out
}

// Len returns the number of queued values.
func (b *Buffer[T]) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.data) }

// IsEmpty reports whether nothing is queued.
func (b *Buffer[T]) IsEmpty() bool { return b.count == 0 }

// Dropped returns how many pushes were rejected because the buffer was full.
func (b *Buffer[T]) Dropped() uint64 { return b.dropped }
