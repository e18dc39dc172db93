package connection

import (
	"errors"
	"io"
	"sync"

	"github.com/udisondev/pso2go/internal/metrics"
)

const (
	readChunkSize = 4096
	// pumpBacklog is the number of chunks read ahead of the consumer.
	pumpBacklog = 1
)

type chunk struct {
	buf []byte
	n   int
	err error
}

// stream owns the transport of a Conn, shared by both halves after Split.
//
// All reads go through a single read pump goroutine, started on the first read,
// so blocking, polling and context-bound reads can be mixed freely.
type stream struct {
	rw io.ReadWriter

	pumpOnce sync.Once
	in       chan chunk
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newStream(rw io.ReadWriter) *stream {
	metrics.Default().ActiveConnections.Inc()
	return &stream{
		rw:   rw,
		in:   make(chan chunk, pumpBacklog),
		done: make(chan struct{}),
	}
}

func (s *stream) chunks() <-chan chunk {
	s.pumpOnce.Do(func() { go s.readPump() })
	return s.in
}

// readPump reads the transport until a fatal error or Close.
func (s *stream) readPump() {
	defer close(s.in)
	for {
		buf := readPool.Get(readChunkSize)
		n, err := s.rw.Read(buf)
		if n == 0 && err == nil {
			err = ErrDisconnected
		}

		select {
		case s.in <- chunk{buf: buf, n: n, err: err}:
		case <-s.done:
			readPool.Put(buf)
			return
		}
		if err != nil && !errors.Is(mapIOError(err), ErrWouldBlock) {
			return
		}
	}
}

// Write makes stream usable as the destination of FrameWriter.Flush.
func (s *stream) Write(p []byte) (int, error) {
	n, err := s.rw.Write(p)
	if n > 0 {
		metrics.Default().Bytes.WithLabelValues("write").Add(float64(n))
	}
	return n, err
}

func (s *stream) close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.rw.(io.Closer); ok {
			s.closeErr = c.Close()
		}
		metrics.Default().ActiveConnections.Dec()
	})
	return s.closeErr
}
