package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/db"
	"github.com/udisondev/pso2go/internal/variant"
)

// CaptureSink is a capture.Sink owned by a single session.
type CaptureSink interface {
	capture.Sink
	io.Closer
}

// CaptureOpener opens the sink of a new session.
type CaptureOpener func(ctx context.Context, info SessionInfo, v variant.Variant) (CaptureSink, error)

// FileCaptures writes one PPAC file per session into dir.
func FileCaptures(dir string, compress bool) CaptureOpener {
	return func(_ context.Context, info SessionInfo, v variant.Variant) (CaptureSink, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating capture dir: %w", err)
		}
		w, err := capture.Create(filepath.Join(dir, captureFileName(info)), v, compress)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

func captureFileName(info SessionInfo) string {
	return fmt.Sprintf("%s-%06d.ppac", info.StartedAt.UTC().Format("20060102-150405"), info.ID)
}

// DBCaptures stores every session in PostgreSQL.
func DBCaptures(repo *db.CaptureRepository) CaptureOpener {
	return func(ctx context.Context, info SessionInfo, v variant.Variant) (CaptureSink, error) {
		sess, err := repo.StartSession(ctx, v, info.Client.String(), info.Upstream)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

// MultiCaptures opens every opener and writes each frame to all of them.
func MultiCaptures(openers ...CaptureOpener) CaptureOpener {
	if len(openers) == 1 {
		return openers[0]
	}
	return func(ctx context.Context, info SessionInfo, v variant.Variant) (CaptureSink, error) {
		var sinks multiSink
		for _, open := range openers {
			sink, err := open(ctx, info, v)
			if err != nil {
				sinks.Close()
				return nil, err
			}
			sinks = append(sinks, sink)
		}
		return sinks, nil
	}
}

type multiSink []CaptureSink

func (m multiSink) WriteFrame(t time.Time, dir capture.Direction, data []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFrame(t, dir, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) SetVariant(v variant.Variant) error {
	var errs []error
	for _, s := range m {
		if vs, ok := s.(capture.VariantSetter); ok {
			if err := vs.SetVariant(v); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
