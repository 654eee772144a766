package window

import (
	"sync"

	"github.com/vitalwatch/vitalwatch/pkg/types"
)

// DefaultCapacity is the number of readings retained.
const DefaultCapacity = 10

// Buffer is a thread-safe FIFO window of the most recent readings.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	items    []types.Reading
}

// New creates an empty Buffer. A capacity <= 0 is not supported and falls
// back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		items:    make([]types.Reading, 0, capacity+1),
	}
}

// Append adds r at the end of the window, evicting the oldest reading if the
// window would exceed its capacity.
func (b *Buffer) Append(r types.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, r)
	if len(b.items) > b.capacity {
		// Shift in place so the backing array never grows past capacity+1.
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
}

// Snapshot returns a copy of the current readings, oldest first.
func (b *Buffer) Snapshot() []types.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Reading, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of readings currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Series is the window laid out as parallel slices, one per chart.
type Series struct {
	Labels      []string  `json:"labels"`
	SpO2        []float64 `json:"spo2"`
	HeartRate   []float64 `json:"heart_rate"`
	Temperature []float64 `json:"temperature"`
}

// Len returns the number of points in each slice.
func (s Series) Len() int { return len(s.Labels) }

// Series returns the current readings as parallel slices.
func (b *Buffer) Series() Series {
	return SeriesOf(b.Snapshot())
}

// SeriesOf lays out readings as parallel slices.
func SeriesOf(readings []types.Reading) Series {
	s := Series{
		Labels:      make([]string, len(readings)),
		SpO2:        make([]float64, len(readings)),
		HeartRate:   make([]float64, len(readings)),
		Temperature: make([]float64, len(readings)),
	}
	for i, r := range readings {
		s.Labels[i] = r.Label
		s.SpO2[i] = r.SpO2
		s.HeartRate[i] = r.HeartRate
		s.Temperature[i] = r.Temperature
	}
	return s
}
