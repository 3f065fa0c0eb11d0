// Package series provides the bounded price series feeding the chart: an
// append-only ring of (label, value) points capped at a fixed length, with
// FIFO eviction and strict chronological order.
package series

import (
	"time"

	"pricewatch/internal/domain"
)

// Point is one chart point: a display label and a price.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Buffer is a fixed-capacity ring of points. Append is O(1); exceeding the
// cap evicts the oldest point. A Buffer is discarded, never recycled, when
// the active asset or time range changes.
type Buffer struct {
	points []Point
	head   int // index of the oldest point
	size   int
}

// NewBuffer creates a Buffer holding at most cap points.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{points: make([]Point, capacity)}
}

// FromHistory creates a buffer pre-filled with a fetched history series. If
// the series is longer than the cap, only the newest points are kept.
func FromHistory(capacity int, points []domain.PricePoint) *Buffer {
	b := NewBuffer(capacity)
	for _, p := range points {
		b.Append(FormatLabel(p.Timestamp), p.Price)
	}
	return b
}

// Append adds a point, evicting the oldest when the buffer is full.
func (b *Buffer) Append(label string, value float64) {
	if b.size < len(b.points) {
		b.points[(b.head+b.size)%len(b.points)] = Point{Label: label, Value: value}
		b.size++
		return
	}
	b.points[b.head] = Point{Label: label, Value: value}
	b.head = (b.head + 1) % len(b.points)
}

// Len returns the number of points held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of points held.
func (b *Buffer) Cap() int { return len(b.points) }

// Points returns the points oldest-first as a fresh slice.
func (b *Buffer) Points() []Point {
	out := make([]Point, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.points[(b.head+i)%len(b.points)]
	}
	return out
}

// FormatLabel renders a point timestamp as a chart axis label.
func FormatLabel(t time.Time) string {
	return t.Format("01-02 15:04")
}
