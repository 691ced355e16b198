package charging

import "codeberg.org/mutker/chargectl/internal/mathx"

// Window keeps the most recent samples up to a fixed capacity. Pushing into
// a full window evicts the oldest sample.
type Window[T mathx.Number] struct {
	buf  []T
	head int // index of the oldest sample
	size int
}

func NewWindow[T mathx.Number](capacity int) *Window[T] {
	return &Window[T]{buf: make([]T, max(capacity, 1))}
}

func (w *Window[T]) Push(v T) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

func (w *Window[T]) Len() int {
	return w.size
}

func (w *Window[T]) Cap() int {
	return len(w.buf)
}

// Values returns the samples oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Average returns the mean of the samples accepted by valid, or false when
// none qualify. A nil valid accepts everything.
func (w *Window[T]) Average(valid func(T) bool) (float64, bool) {
	var sum float64
	var n int
	for i := 0; i < w.size; i++ {
		v := w.buf[(w.head+i)%len(w.buf)]
		if valid != nil && !valid(v) {
			continue
		}
		sum += float64(v)
		n++
	}

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
