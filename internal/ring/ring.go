// Package ring provides a fixed-capacity FIFO buffer that evicts its oldest
// element on overflow.
package ring

// Buffer is not safe for concurrent use; owners guard it with their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New returns a Buffer holding at most capacity elements. A capacity below 1
// is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether the oldest element was evicted to make
// room for it.
func (b *Buffer[T]) Push(v T) bool {
	c := len(b.items)
	if b.size < c {
		b.items[(b.head+b.size)%c] = v
		b.size++
		return false
	}

	b.items[b.head] = v
	b.head = (b.head + 1) % c

	return true
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.items) }

// At returns the i-th element counting from the oldest.
func (b *Buffer[T]) At(i int) T {
	return b.items[(b.head+i)%len(b.items)]
}

// Last returns the newest element.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}

	return b.At(b.size - 1), true
}

// Items copies the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}

	return out
}

// Each calls fn for every element oldest first until fn returns false.
func (b *Buffer[T]) Each(fn func(T) bool) {
	for i := 0; i < b.size; i++ {
		if !fn(b.At(i)) {
			return
		}
	}
}

// RemoveIf drops every element matching pred, keeps the rest in order and
// returns how many were removed.
func (b *Buffer[T]) RemoveIf(pred func(T) bool) int {
	kept := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		if v := b.At(i); !pred(v) {
			kept = append(kept, v)
		}
	}

	removed := b.size - len(kept)
	if removed == 0 {
		return 0
	}

	b.Reset()
	for _, v := range kept {
		b.Push(v)
	}

	return removed
}

// Reset empties the buffer without changing its capacity.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
