package capture

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/udisondev/pso2go/internal/metrics"
)

// Buffer is an in-memory Sink and Source.
type Buffer struct {
	mu      sync.Mutex
	records []Record
	next    int
}

// WriteFrame appends a copy of every frame of data.
func (b *Buffer) WriteFrame(t time.Time, dir Direction, data []byte) error {
	frames, err := SplitFrames(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range frames {
		b.records = append(b.records, Record{Time: t, Direction: dir, Data: slices.Clone(f)})
		metrics.Default().CapturedFrames.Inc()
	}
	return err
}

// NextFrame returns records in insertion order and io.EOF once all were read.
func (b *Buffer) NextFrame() (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next >= len(b.records) {
		return Record{}, io.EOF
	}
	rec := b.records[b.next]
	b.next++
	return rec, nil
}

// Records returns a snapshot of everything written so far.
func (b *Buffer) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.records)
}

// Len returns the number of stored records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
