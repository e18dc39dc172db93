// ppacdump prints, repacks and imports PPAC captures.
//
// Usage:
//
//	go run ./cmd/ppacdump session.ppac                       # print every packet
//	go run ./cmd/ppacdump -raw frames/ session.ppac          # also save unknown frames
//	go run ./cmd/ppacdump -repack out/ -compress captures/   # rewrite as PPAC v4
//	go run ./cmd/ppacdump -db $DSN -import session.ppac      # store in PostgreSQL
//	go run ./cmd/ppacdump -db $DSN -sessions                 # list stored sessions
//	go run ./cmd/ppacdump -db $DSN -session 42               # print a stored session
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/pso2go/internal/db"
)

func main() {
	rawDir := flag.String("raw", "", "directory to save unknown and undecodable frames to")
	verbose := flag.Bool("v", false, "print packet fields")
	repackDir := flag.String("repack", "", "rewrite inputs as PPAC v4 into this directory")
	compress := flag.Bool("compress", false, "zstd-compress repacked files")
	dsn := flag.String("db", "", "PostgreSQL DSN")
	importFiles := flag.Bool("import", false, "import inputs into the database")
	listSessions := flag.Bool("sessions", false, "list sessions stored in the database")
	sessionID := flag.Int64("session", 0, "print a session stored in the database")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := dumpOptions{rawDir: *rawDir, verbose: *verbose}
	var err error
	switch {
	case *dsn != "" && (*importFiles || *listSessions || *sessionID != 0):
		err = withDB(ctx, *dsn, func(repo *db.CaptureRepository) error {
			switch {
			case *importFiles:
				return importAll(ctx, repo, flag.Args())
			case *listSessions:
				return printSessions(ctx, os.Stdout, repo)
			default:
				return dumpSession(ctx, os.Stdout, repo, *sessionID, opts)
			}
		})
	case *repackDir != "":
		err = repackAll(flag.Args(), *repackDir, *compress)
	case flag.NArg() > 0:
		err = dumpFiles(os.Stdout, flag.Args(), opts)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func withDB(ctx context.Context, dsn string, fn func(*db.CaptureRepository) error) error {
	database, err := db.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(database.Captures())
}
