package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/db"
)

// inputs expands directories into the .ppac files they contain.
func inputs(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if p == path || strings.EqualFold(filepath.Ext(p), ".ppac") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func repackAll(paths []string, outDir string, compress bool) error {
	files, err := inputs(paths)
	if err != nil {
		return err
	}
	for _, path := range files {
		dst := filepath.Join(outDir, filepath.Base(path))
		if filepath.Clean(dst) == filepath.Clean(path) {
			return fmt.Errorf("%s: output would overwrite the input", path)
		}
		n, err := repack(path, dst, compress)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s -> %s (%d records)\n", path, dst, n)
	}
	return nil
}

// repack rewrites src as a PPAC v4 file keeping every record verbatim.
func repack(src, dst string, compress bool) (int, error) {
	r, err := capture.Open(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating output dir: %w", err)
	}
	w, err := capture.Create(dst, r.Variant(), compress)
	if err != nil {
		return 0, err
	}

	n := 0
	for {
		rec, err := r.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Close()
			return n, err
		}
		if err := w.WriteRecord(rec); err != nil {
			w.Close()
			return n, err
		}
		n++
	}
	return n, w.Close()
}

func importAll(ctx context.Context, repo *db.CaptureRepository, paths []string) error {
	files, err := inputs(paths)
	if err != nil {
		return err
	}
	for _, path := range files {
		r, err := capture.Open(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		id, n, err := repo.Import(ctx, r.Variant(), path, r)
		r.Close()
		if err != nil {
			return err
		}
		fmt.Printf("%s -> session %d (%d frames)\n", path, id, n)
	}
	return nil
}
