package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	perr "github.com/next-trace/scg-projector/contract/errors"
	"github.com/next-trace/scg-projector/contract/projection"
)

// Tx is the transaction handed to handlers as their connection.
type Tx interface {
	Commit() error
	Rollback() error
}

// Beginner starts transactions of type T.
type Beginner[T Tx] interface {
	Begin(ctx context.Context) (T, error)
}

// DB is a sqlx-backed Beginner whose transactions are *sqlx.Tx.
type DB struct {
	*sqlx.DB
}

var _ Beginner[*sqlx.Tx] = DB{}

// Begin starts a read-write transaction bound to ctx.
func (db DB) Begin(ctx context.Context) (*sqlx.Tx, error) { return db.BeginTxx(ctx, nil) }

// Shutdown closes the pool.
func (db DB) Shutdown() {
	if db.DB == nil {
		return
	}

	_ = db.Close()
}

// Connect opens a pgx-backed sqlx pool from u. The optional max_open and max_idle query
// parameters size the pool; they are removed before the DSN reaches the driver.
func Connect(ctx context.Context, u *url.URL) (DB, error) {
	if u == nil {
		return DB{}, fmt.Errorf("postgres connect: url: %w", perr.ErrInvalidArgument)
	}

	dsn := *u
	q := dsn.Query()

	mo, err := strconv.Atoi(q.Get("max_open"))
	if err != nil {
		mo = 16
	}

	mi, err := strconv.Atoi(q.Get("max_idle"))
	if err != nil {
		mi = mo / 4 * 3
	}

	q.Del("max_open")
	q.Del("max_idle")
	dsn.RawQuery = q.Encode()

	db, err := sqlx.Open("pgx", dsn.String())
	if err != nil {
		return DB{}, err
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return DB{}, err
	}

	db.SetMaxOpenConns(mo)
	db.SetMaxIdleConns(mi)

	return DB{DB: db}, nil
}

// NewSink returns a projection.Sink that projects every batch inside its own transaction.
// The transaction is committed when the whole batch succeeded; otherwise it is rolled back
// and the projection error is returned unchanged.
func NewSink[T Tx](db Beginner[T], p projection.Projector[T], logger *slog.Logger) projection.Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(ctx context.Context, msgs []projection.Message) error {
		tx, err := db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres begin: %w", err)
		}

		if err := p.ProjectManyContext(ctx, tx, msgs); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.WarnContext(ctx, "postgres rollback failed", "error", rbErr)
			}

			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("postgres commit: %w", err)
		}

		logger.DebugContext(ctx, "postgres batch committed", "messages", len(msgs))

		return nil
	}
}
