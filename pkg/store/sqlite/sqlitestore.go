package sqlitestore

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	_ "embed" // for side effect

	_ "modernc.org/sqlite" // for side effect

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// errors form database
var (
	// ErrNoRowsAffected by the operation.
	ErrNoRowsAffected = errors.New("no rows affected by operation")

	// ErrNotFound is returned when the user has no stored modem config.
	ErrNotFound = errors.New("not found")

	// ErrSealedPassword means a stored password could not be opened with the configured secret.
	ErrSealedPassword = errors.New("stored password cannot be decrypted")

	// ErrNoSecret is returned by New when no secret is configured.
	ErrNoSecret = errors.New("secret for sealing passwords is required")
)

type SqliteStore struct {
	dbSpec string
	mu     sync.RWMutex
	db     *sqlx.DB
	key    [32]byte
	log    *zap.Logger
}

var (
	//go:embed schema.sql
	schema string

	// regexp for matching comments and empty lines
	commentsAndEmptyLinesRegex = regexp.MustCompile("--.*?\n$|^\\s+$")
)

// New creates a new sqliteStore instance. If the database does not exist
// it is created. secret keys the sealing of stored passwords.
func New(dbSpec, secret string, logger *zap.Logger) (*SqliteStore, bool, error) {
	if secret == "" {
		return nil, false, ErrNoSecret
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, created, err := openDB(dbSpec, logger)
	if err != nil {
		return nil, false, err
	}
	key, err := deriveKey(db, secret)
	if err != nil {
		db.Close()
		return nil, false, err
	}

	return &SqliteStore{
		dbSpec: dbSpec,
		db:     db,
		key:    key,
		log:    logger,
	}, created, nil
}

// Close the sqliteStore.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func openDB(dbSpec string, logger *zap.Logger) (*sqlx.DB, bool, error) {
	// If the file does not already exist or the database is not an in-memory database
	// we need to create the schema.
	dbNeedsCreation := true
	if !strings.Contains(dbSpec, ":memory:") {
		_, err := os.Stat(dbSpec)
		dbNeedsCreation = os.IsNotExist(err)
	}

	db, err := sqlx.Open("sqlite", dbSpec)
	if err != nil {
		return nil, false, fmt.Errorf("unable to open database: %w", err)
	}
	// an in-memory database exists once per connection
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		return nil, false, fmt.Errorf("unable to ping database: %w", err)
	}

	if dbNeedsCreation {
		err := createSchema(db)
		if err != nil {
			return nil, false, fmt.Errorf("unable to create schema: %w", err)
		}
		logger.Info("created database", zap.String("db", dbSpec))
	}

	return db, dbNeedsCreation, nil
}

// createSchema populates a schema into an sqlx database handle
func createSchema(db *sqlx.DB) error {
	for n, statement := range strings.Split(schema, ";") {
		statement = trimCommentsAndWhitespace(statement)

		if statement == "" {
			continue
		}

		_, err := db.Exec(statement)
		if err != nil {
			return fmt.Errorf("statement %d failed: \"%s\" : %w", n+1, statement, err)
		}
	}

	return nil
}

// trimCommentsAndWhitespace removes comments and superfluous whitespace
func trimCommentsAndWhitespace(s string) string {
	sb := strings.Builder{}

	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		sb.Write(commentsAndEmptyLinesRegex.ReplaceAll([]byte(line), nil))
	}
	return strings.TrimSpace(sb.String())
}

// CheckForZeroRowsAffected ensures that if zero rows are affected by operations that
// should have side-effects, an error is returned.
func CheckForZeroRowsAffected(r sql.Result, err error) error {
	if r == nil {
		return err
	}
	affected, err2 := r.RowsAffected()
	if err2 != nil {
		return err2
	}
	if affected == 0 {
		return ErrNoRowsAffected
	}

	return err
}
