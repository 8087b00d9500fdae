package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/sciencegpt/core"
	appfs "github.com/trezcool/sciencegpt/fs"
)

// Driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const migrationsDir = "migrations"

var gooseMu sync.Mutex

// dsn translates a DATABASE_URL into a driver name and data source name.
// Supported forms: sqlite://path/to.db, sqlite://:memory:, postgres://... and postgresql://...
func dsn(rawURL string) (string, string, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", errors.Errorf("invalid database URL %q", rawURL)
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		if rest == "" {
			return "", "", errors.New("sqlite database URL needs a path")
		}
		if rest == ":memory:" {
			return DriverSQLite, "file::memory:?_pragma=foreign_keys(1)", nil
		}
		path, query, _ := strings.Cut(rest, "?")
		q, err := url.ParseQuery(query)
		if err != nil {
			return "", "", errors.Wrap(err, "parsing sqlite URL query")
		}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "journal_mode(WAL)")
		return DriverSQLite, "file:" + path + "?" + q.Encode(), nil
	case "postgres", "postgresql":
		return DriverPostgres, rawURL, nil
	}
	return "", "", errors.Errorf("unsupported database scheme %q", scheme)
}

// Open connects to conf.Database.URL and waits for the database to answer.
func Open(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	driver, source, err := dsn(conf.Database.URL)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite && !strings.HasPrefix(source, "file::memory:") {
		path := strings.TrimPrefix(source, "file:")
		path, _, _ = strings.Cut(path, "?")
		if dir := filepath.Dir(path); dir != "." {
			if err = os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "creating database directory")
			}
		}
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if driver == DriverSQLite {
		// a :memory: database lives as long as its connection
		db.SetMaxOpenConns(1)
	} else if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	}

	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func dialect(db *sqlx.DB) string {
	if db.DriverName() == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Migrate applies the pending embedded migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return RunMigrations(ctx, db, nil, "up")
}

// RunMigrations runs a goose command ("up", "down", "status", "version", "redo", "reset", ...)
// against the embedded migrations. logger may be nil.
func RunMigrations(ctx context.Context, db *sqlx.DB, logger core.Logger, command string, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(appfs.FS)
	if logger == nil {
		goose.SetLogger(goose.NopLogger())
	} else {
		goose.SetLogger(gooseLogger{logger})
	}
	if err := goose.SetDialect(dialect(db)); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.RunContext(ctx, command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

type gooseLogger struct {
	logger core.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
