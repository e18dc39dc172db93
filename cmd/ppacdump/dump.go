package main

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
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

type dumpOptions struct {
	rawDir  string
	verbose bool
}

type dumpStats struct {
	records int
	packets int
	unknown int
	failed  int
}

func dumpFiles(w io.Writer, paths []string, opts dumpOptions) error {
	for _, path := range paths {
		r, err := capture.Open(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(w, "# %s: PPAC v%d, %s\n", path, r.Version(), r.Variant())
		stats, err := dump(w, r, r.Variant(), opts)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		printStats(w, stats)
	}
	return nil
}

func dumpSession(ctx context.Context, w io.Writer, repo *db.CaptureRepository, id int64, opts dumpOptions) error {
	sess, err := repo.Session(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d not found", id)
	}
	fmt.Fprintf(w, "# session %d: %s, client %s, %d frames\n", sess.ID, sess.Variant, sess.ClientAddr, sess.Frames)
	stats, err := dump(w, repo.Frames(ctx, id), sess.Variant, opts)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printSessions(ctx context.Context, w io.Writer, repo *db.CaptureRepository) error {
	sessions, err := repo.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		ended := "open"
		if s.EndedAt != nil {
			ended = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%6d  %-7s  %-21s  %s  %-8s  %d frames\n",
			s.ID, s.Variant, s.ClientAddr, s.StartedAt.Format(time.DateTime), ended, s.Frames)
	}
	return nil
}

// dump prints every record of src, one line per packet.
func dump(w io.Writer, src capture.Source, v variant.Variant, opts dumpOptions) (dumpStats, error) {
	var stats dumpStats
	if opts.rawDir != "" {
		if err := os.MkdirAll(opts.rawDir, 0o755); err != nil {
			return stats, fmt.Errorf("creating raw dir: %w", err)
		}
	}

	for {
		rec, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.records++

		packets, decodeErr := protocol.Decode(rec.Data, v)
		for _, p := range packets {
			stats.packets++
			fmt.Fprintf(w, "%s %s %s\n", arrow(rec.Direction), rec.Time.UTC().Format(time.RFC3339Nano), describe(p))
			if opts.verbose {
				fmt.Fprintf(w, "\t%+v\n", p)
			}
			if u, ok := p.(*protocol.Unknown); ok {
				stats.unknown++
				name := fmt.Sprintf("%06d_%02X_%04X.bin", stats.records, u.Header.Category, u.Header.SubID)
				if err := saveRaw(opts.rawDir, name, rec.Data); err != nil {
					return stats, err
				}
			}
		}
		if decodeErr != nil {
			stats.failed++
			fmt.Fprintf(w, "%s %s error: %v\n", arrow(rec.Direction), rec.Time.UTC().Format(time.RFC3339Nano), decodeErr)
			if err := saveRaw(opts.rawDir, fmt.Sprintf("%06d_error.bin", stats.records), rec.Data); err != nil {
				return stats, err
			}
		}
	}
}

func arrow(d capture.Direction) string {
	if d == capture.ToServer {
		return "(C -> S)"
	}
	return "(S -> C)"
}

func describe(p protocol.Packet) string {
	if h, ok := protocol.HeaderOf(p); ok {
		return fmt.Sprintf("%s %s", h, protocol.Name(p))
	}
	return protocol.Name(p)
}

func saveRaw(dir, name string, data []byte) error {
	if dir == "" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("saving raw frame: %w", err)
	}
	return nil
}

func printStats(w io.Writer, s dumpStats) {
	fmt.Fprintf(w, "# records: %d, packets: %d, unknown: %d, failed: %d\n", s.records, s.packets, s.unknown, s.failed)
}
