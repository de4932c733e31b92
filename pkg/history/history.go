// Package history keeps the most recent samples in a fixed-capacity ring buffer.
package history

import "time"

// Capacity is the number of samples retained.
const Capacity = 20

// ClockLayout renders a sample timestamp with minute precision.
const ClockLayout = "15:04"

// Sample is one timestamped temperature/humidity reading.
type Sample struct {
	Timestamp   time.Time
	Temperature float64 // °C
	Humidity    float64 // %
}

// Clock returns the sample time as HH:MM.
func (s Sample) Clock() string {
	return s.Timestamp.Format(ClockLayout)
}

// History is a FIFO ring buffer of samples. Appending to a full buffer evicts
// the oldest sample. It is owned by a single goroutine and does no locking.
type History struct {
	buf   [Capacity]Sample
	start int // Index of the oldest sample
	n     int
}

// New creates an empty History.
func New() *History {
	return &History{}
}

// Append adds a sample, evicting the oldest one when full.
func (h *History) Append(s Sample) {
	if h.n < Capacity {
		h.buf[(h.start+h.n)%Capacity] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % Capacity
}

// Len returns the number of samples held.
func (h *History) Len() int {
	return h.n
}

// Last returns the most recent sample.
func (h *History) Last() (Sample, bool) {
	if h.n == 0 {
		return Sample{}, false
	}
	return h.buf[(h.start+h.n-1)%Capacity], true
}

// Snapshot returns a copy of the samples, oldest first.
func (h *History) Snapshot() []Sample {
	out := make([]Sample, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%Capacity]
	}
	return out
}
