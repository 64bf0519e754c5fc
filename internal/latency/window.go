// Package latency keeps a bounded window of data-freshness ages.
package latency

import (
	"math"
	"sync"
)

// MaxAge is the largest accepted sample. Larger values come from books that
// were never stamped and are dropped.
const MaxAge = 1e10

type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Count  int     `json:"count"`
}

// Window is a FIFO of samples evicting the oldest once full. Safe for
// concurrent use.
type Window struct {
	mu       sync.Mutex
	buf      []float64
	head     int
	size     int
	capacity int
}

func NewWindow(capacity int) *Window {
	w := &Window{}
	w.Grow(capacity)
	return w
}

// Grow raises the capacity by n, keeping the samples already held.
func (w *Window) Grow(n int) {
	if n <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := make([]float64, w.capacity+n)
	for i := 0; i < w.size; i++ {
		buf[i] = w.buf[(w.head+i)%w.capacity]
	}
	w.buf = buf
	w.head = 0
	w.capacity += n
}

func (w *Window) Capacity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capacity
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Add records one age. It reports whether the sample was kept.
func (w *Window) Add(age float64) bool {
	if math.IsNaN(age) || age > MaxAge {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capacity == 0 {
		return false
	}
	if w.size == w.capacity {
		w.buf[w.head] = age
		w.head = (w.head + 1) % w.capacity
		return true
	}
	w.buf[(w.head+w.size)%w.capacity] = age
	w.size++
	return true
}

// Stats returns mean, population standard deviation and minimum of the
// window. ok is false when the window is empty.
func (w *Window) Stats() (s Stats, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.size == 0 {
		return Stats{}, false
	}
	var mean, m2 float64
	min := math.Inf(1)
	for i := 0; i < w.size; i++ {
		v := w.buf[(w.head+i)%w.capacity]
		n := float64(i + 1)
		delta := v - mean
		mean += delta / n
		m2 += delta * (v - mean)
		if v < min {
			min = v
		}
	}
	return Stats{Mean: mean, StdDev: math.Sqrt(m2 / float64(w.size)), Min: min, Count: w.size}, true
}
