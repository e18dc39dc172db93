package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/variant"
)

// framePageSize is the number of frames a FrameSource fetches per query.
const framePageSize = 512

// SessionRow represents a row from capture_sessions.
type SessionRow struct {
	ID         int64
	Variant    variant.Variant
	ClientAddr string
	Upstream   string
	StartedAt  time.Time
	EndedAt    *time.Time // nil while the session is open
	Frames     int64
}

// CaptureRepository stores captured sessions and their frames.
type CaptureRepository struct {
	pool *pgxpool.Pool
}

// NewCaptureRepository creates a new CaptureRepository.
func NewCaptureRepository(pool *pgxpool.Pool) *CaptureRepository {
	return &CaptureRepository{pool: pool}
}

// StartSession opens a session. ctx bounds every write made through it.
func (r *CaptureRepository) StartSession(ctx context.Context, v variant.Variant, clientAddr, upstream string) (*CaptureSession, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO capture_sessions (variant, client_addr, upstream)
		 VALUES ($1, $2, $3) RETURNING id`,
		v.String(), clientAddr, upstream,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating capture session: %w", err)
	}
	slog.Debug("capture session started", "session", id, "variant", v, "client", clientAddr)
	return &CaptureSession{pool: r.pool, ctx: ctx, id: id, variant: v}, nil
}

// Session loads one session. Returns nil, nil if it does not exist.
func (r *CaptureRepository) Session(ctx context.Context, id int64) (*SessionRow, error) {
	row, err := scanSession(r.pool.QueryRow(ctx, sessionQuery+` WHERE s.id = $1 GROUP BY s.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying capture session %d: %w", id, err)
	}
	return row, nil
}

// Sessions lists all sessions, newest first.
func (r *CaptureRepository) Sessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := r.pool.Query(ctx, sessionQuery+` GROUP BY s.id ORDER BY s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query capture_sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionRow
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture_sessions: %w", err)
		}
		result = append(result, *row)
	}
	return result, rows.Err()
}

const sessionQuery = `
	SELECT s.id, s.variant, s.client_addr, s.upstream, s.started_at, s.ended_at, count(f.seq)
	FROM capture_sessions s
	LEFT JOIN capture_frames f ON f.session_id = s.id`

func scanSession(row pgx.Row) (*SessionRow, error) {
	var (
		s    SessionRow
		name string
	)
	if err := row.Scan(&s.ID, &name, &s.ClientAddr, &s.Upstream, &s.StartedAt, &s.EndedAt, &s.Frames); err != nil {
		return nil, err
	}
	v, err := variant.Parse(name)
	if err != nil {
		return nil, err
	}
	s.Variant = v
	return &s, nil
}

// DeleteSession removes a session together with its frames.
func (r *CaptureRepository) DeleteSession(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM capture_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting capture session %d: %w", id, err)
	}
	return nil
}

// Frames returns a Source over the frames of a session in capture order.
func (r *CaptureRepository) Frames(ctx context.Context, id int64) *FrameSource {
	return &FrameSource{pool: r.pool, ctx: ctx, session: id}
}

// Import stores every record of src as a new closed session in one transaction.
func (r *CaptureRepository) Import(ctx context.Context, v variant.Variant, origin string, src capture.Source) (int64, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin capture import: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "origin", origin, "error", err)
		}
	}()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO capture_sessions (variant, client_addr, ended_at)
		 VALUES ($1, $2, now()) RETURNING id`,
		v.String(), origin,
	).Scan(&id)
	if err != nil {
		return 0, 0, fmt.Errorf("creating capture session: %w", err)
	}

	seq := int64(0)
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"capture_frames"},
		[]string{"session_id", "seq", "captured_ns", "direction", "data"},
		pgx.CopyFromFunc(func() ([]any, error) {
			rec, err := src.NextFrame()
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			seq++
			return []any{id, seq, rec.Time.UnixNano(), int16(rec.Direction), rec.Data}, nil
		}),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("importing frames of %s: %w", origin, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit capture import: %w", err)
	}

	slog.Debug("imported capture", "session", id, "origin", origin, "frames", n)
	return id, int(n), nil
}

// CaptureSession is an open session. It implements capture.Sink and
// capture.VariantSetter and is safe for concurrent use.
type CaptureSession struct {
	pool    *pgxpool.Pool
	ctx     context.Context
	id      int64
	mu      sync.Mutex
	seq     int64
	variant variant.Variant
}

// ID returns the session id.
func (s *CaptureSession) ID() int64 { return s.id }

// WriteFrame stores every frame of data in one batch.
func (s *CaptureSession) WriteFrame(t time.Time, dir capture.Direction, data []byte) error {
	frames, splitErr := capture.SplitFrames(data)
	if len(frames) == 0 {
		return splitErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := &pgx.Batch{}
	for _, f := range frames {
		s.seq++
		batch.Queue(
			`INSERT INTO capture_frames (session_id, seq, captured_ns, direction, data)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.id, s.seq, t.UnixNano(), int16(dir), f)
	}
	br := s.pool.SendBatch(s.ctx, batch)
	for range frames {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting frame of session %d: %w", s.id, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("inserting frames of session %d: %w", s.id, err)
	}
	metrics.Default().CapturedFrames.Add(float64(len(frames)))
	return splitErr
}

// SetVariant records a variant change of the captured connection.
func (s *CaptureSession) SetVariant(v variant.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.pool.Exec(s.ctx, `UPDATE capture_sessions SET variant = $1 WHERE id = $2`, v.String(), s.id)
	if err != nil {
		return fmt.Errorf("updating variant of session %d: %w", s.id, err)
	}
	s.variant = v
	return nil
}

// Variant returns the variant last recorded for the session.
func (s *CaptureSession) Variant() variant.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variant
}

// Close marks the session as ended.
func (s *CaptureSession) Close() error {
	// сессия закрывается и после отмены ctx соединения
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `UPDATE capture_sessions SET ended_at = now() WHERE id = $1`, s.id)
	if err != nil {
		return fmt.Errorf("closing capture session %d: %w", s.id, err)
	}
	return nil
}

// FrameSource reads the frames of a stored session page by page.
// It implements capture.Source.
type FrameSource struct {
	pool    *pgxpool.Pool
	ctx     context.Context
	session int64
	after   int64
	page    []capture.Record
	done    bool
}

// NextFrame returns the next frame or io.EOF after the last one.
func (s *FrameSource) NextFrame() (capture.Record, error) {
	if len(s.page) == 0 {
		if s.done {
			return capture.Record{}, io.EOF
		}
		if err := s.fetch(); err != nil {
			return capture.Record{}, err
		}
		if len(s.page) == 0 {
			return capture.Record{}, io.EOF
		}
	}
	rec := s.page[0]
	s.page = s.page[1:]
	return rec, nil
}

func (s *FrameSource) fetch() error {
	rows, err := s.pool.Query(s.ctx,
		`SELECT seq, captured_ns, direction, data FROM capture_frames
		 WHERE session_id = $1 AND seq > $2
		 ORDER BY seq LIMIT $3`,
		s.session, s.after, framePageSize)
	if err != nil {
		return fmt.Errorf("query capture_frames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq, ns int64
			dir     int16
			rec     capture.Record
		)
		if err := rows.Scan(&seq, &ns, &dir, &rec.Data); err != nil {
			return fmt.Errorf("scan capture_frames: %w", err)
		}
		rec.Time = time.Unix(0, ns)
		rec.Direction = capture.Direction(dir)
		s.page = append(s.page, rec)
		s.after = seq
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query capture_frames: %w", err)
	}
	s.done = len(s.page) < framePageSize
	return nil
}
