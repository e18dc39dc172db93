package connection

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrWouldBlock is returned by non-blocking reads and by writes that hit a deadline.
	// Buffered state is kept; the call may be retried.
	ErrWouldBlock = errors.New("operation would block")

	// ErrDisconnected is returned once the peer closed the connection or it was reset.
	ErrDisconnected = errors.New("connection closed")
)

// mapIOError folds transport errors into ErrDisconnected and ErrWouldBlock.
func mapIOError(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrDisconnected):
		return err
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrWouldBlock
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	default:
		return err
	}
}
