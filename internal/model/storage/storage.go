package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/logger"

	// postgres driver
	_ "github.com/lib/pq"
	// sqlite driver
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidExpense  = errors.New("invalid expense")
)

//go:embed migrations
var migrations embed.FS

type config interface {
	Driver() string
	DSN() string
}

// SQLStorage keeps users, categories and confirmed expenses in SQLite or Postgres.
type SQLStorage struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	driver  string
}

// New opens the database and brings its schema up to date.
func New(ctx context.Context, config config) (*SQLStorage, error) {
	driver := config.Driver()
	dsn := config.DSN()

	var (
		placeholder sq.PlaceholderFormat
		dialect     goose.Dialect
	)
	switch driver {
	case driverSQLite:
		placeholder, dialect = sq.Question, goose.DialectSQLite3
		dsn = sqliteDSN(dsn)
	case driverPostgres:
		placeholder, dialect = sq.Dollar, goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to database")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "cannot connect to database")
	}

	s := &SQLStorage{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		driver:  driver,
	}
	if err = s.migrate(ctx, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == driverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}
	return s, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func (s *SQLStorage) migrate(ctx context.Context, dialect goose.Dialect) error {
	dir, err := fs.Sub(migrations, "migrations/"+s.driver)
	if err != nil {
		return errors.Wrap(err, "migrations dir")
	}
	provider, err := goose.NewProvider(dialect, s.db.DB, dir)
	if err != nil {
		return errors.Wrap(err, "migrations provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	for _, r := range results {
		logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("took", r.Duration))
	}
	return nil
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLStorage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		txErr := tx.Rollback()
		if txErr != nil && !errors.Is(txErr, sql.ErrTxDone) {
			logger.Error("error when transaction rollback", zap.Error(txErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// dbTime normalizes timestamps so text comparison in SQLite matches time order.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
