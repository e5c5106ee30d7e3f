package orderflow

// ring is a fixed-capacity FIFO buffer. When full, a push evicts the
// oldest entry. Detectors key one ring per instrument so memory stays
// O(capacity) per symbol regardless of runtime.
type ring[T any] struct {
	buf   []T
	head  int // index of oldest element
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when full
func (r *ring[T]) Push(v T) {
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = v
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

// Len returns the number of stored entries
func (r *ring[T]) Len() int { return r.count }

// At returns the i-th oldest entry; i must be in [0, Len())
func (r *ring[T]) At(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the most recent entry and whether one exists
func (r *ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.At(r.count - 1), true
}

// Items returns entries oldest-first as a fresh slice
func (r *ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// keyedRings lazily allocates one ring per instrument key
type keyedRings[T any] struct {
	capacity int
	rings    map[string]*ring[T]
}

func newKeyedRings[T any](capacity int) *keyedRings[T] {
	return &keyedRings[T]{capacity: capacity, rings: make(map[string]*ring[T])}
}

func (k *keyedRings[T]) get(key string) *ring[T] {
	r, ok := k.rings[key]
	if !ok {
		r = newRing[T](k.capacity)
		k.rings[key] = r
	}
	return r
}
