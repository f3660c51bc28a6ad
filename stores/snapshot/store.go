// Package snapshot persists height-keyed copies of the staking aggregate and
// replays them back, the way the reference node's coinbase service keeps a
// dual-engine (sqlite/postgres) table behind a single SQLEngine switch
// (services/coinbase/Coinbase.go's createTables).
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fra-chain/stakingcore/errors"
	"github.com/fra-chain/stakingcore/model"
	"github.com/fra-chain/stakingcore/settings"
	"github.com/fra-chain/stakingcore/tracing"
	"github.com/fra-chain/stakingcore/ulogger"
)

// Engine identifies the backing SQL dialect, mirroring the reference node's
// util.SQLEngine constants.
type Engine string

const (
	Postgres Engine = "postgres"
	Sqlite   Engine = "sqlite"
)

// Store persists Staking snapshots keyed by height.
type Store struct {
	db     *sql.DB
	engine Engine
	log    ulogger.Logger
}

// Open dials the configured engine and ensures the snapshot table exists.
func Open(ctx context.Context, log ulogger.Logger, cfg settings.Snapshot) (*Store, error) {
	var engine Engine
	switch cfg.Engine {
	case "postgres":
		engine = Postgres
	case "sqlite", "":
		engine = Sqlite
	default:
		return nil, errors.NewConfigurationError("unsupported snapshot engine: %s", cfg.Engine)
	}

	db, err := openDB(log, engine, cfg.DSN)
	if err != nil {
		return nil, errors.NewStorageError("failed to open snapshot db", err)
	}

	s := &Store{db: db, engine: engine, log: log}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("failed to create snapshot tables", err)
	}
	return s, nil
}

func openDB(log ulogger.Logger, engine Engine, dsn string) (*sql.DB, error) {
	switch engine {
	case Postgres:
		log.Infof("[snapshot] using postgres DSN %s", dsn)
		return sql.Open("postgres", dsn)
	case Sqlite:
		var filename string
		if dsn == ":memory:" {
			// A bare ":memory:" DSN gives every pooled connection its own
			// private database, so a second connection wouldn't see tables
			// the first created. Use sqlite's shared-cache memory mode
			// instead, the way the reference node's InitSQLiteDB does for
			// its SqliteMemory engine.
			filename = "file::memory:?cache=shared"
		} else {
			if u, err := url.Parse(dsn); err == nil && u.Scheme == "" && filepath.Dir(dsn) != "." {
				if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
					return nil, fmt.Errorf("failed to create snapshot data folder: %w", err)
				}
			}
			filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", path.Clean(dsn))
		}
		log.Infof("[snapshot] using sqlite db %s", filename)
		db, err := sql.Open("sqlite", filename)
		if err != nil {
			return nil, err
		}
		if dsn == ":memory:" {
			// Shared-cache in-memory databases are dropped once the last
			// connection closes; pin the pool to one connection so the
			// schema and data survive for the store's lifetime.
			db.SetMaxOpenConns(1)
		}
		return db, nil
	default:
		return nil, errors.NewConfigurationError("unsupported snapshot engine: %s", engine)
	}
}

// createTables creates the single snapshot table, using the engine-specific
// column types the reference node's createTables switches on (BIGSERIAL vs
// INTEGER PRIMARY KEY AUTOINCREMENT, BYTEA vs BLOB).
func (s *Store) createTables(ctx context.Context) error {
	var idType, bType string

	switch s.engine {
	case Postgres:
		idType = "BIGSERIAL"
		bType = "BYTEA"
	case Sqlite:
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
		bType = "BLOB"
	default:
		return errors.NewStorageError("unsupported database engine: %s", s.engine)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS staking_snapshots (
			 id          %s
			,height      BIGINT NOT NULL UNIQUE
			,state_hash  %s NOT NULL
			,body        %s NOT NULL
		)
	`, idType, bType, bType))
	return err
}

// Save persists st at its current height, overwriting any prior row for that
// height (a re-Commit of the same height during crash recovery is expected
// to be idempotent, not an error).
func (s *Store) Save(ctx context.Context, st *model.Staking) (err error) {
	ctx, end := tracing.Start(ctx, "snapshot.Save")
	defer end(&err)

	body, encErr := encodeStaking(st)
	if encErr != nil {
		return errors.NewProcessingError("failed to encode staking snapshot", encErr)
	}
	root := st.StateRoot()

	var q string
	switch s.engine {
	case Postgres:
		q = `INSERT INTO staking_snapshots (height, state_hash, body) VALUES ($1, $2, $3)
		     ON CONFLICT (height) DO UPDATE SET state_hash = EXCLUDED.state_hash, body = EXCLUDED.body`
	default:
		q = `INSERT INTO staking_snapshots (height, state_hash, body) VALUES (?, ?, ?)
		     ON CONFLICT (height) DO UPDATE SET state_hash = excluded.state_hash, body = excluded.body`
	}

	if _, err = s.db.ExecContext(ctx, q, int64(st.CurHeight), root[:], body); err != nil {
		return errors.NewStorageError("failed to insert snapshot at height %d", st.CurHeight, err)
	}
	return nil
}

// Load reconstructs the Staking aggregate last committed at or before
// height. Passing the maximum uint64 loads the latest snapshot.
func (s *Store) Load(ctx context.Context, height uint64) (st *model.Staking, err error) {
	ctx, end := tracing.Start(ctx, "snapshot.Load")
	defer end(&err)

	var q string
	switch s.engine {
	case Postgres:
		q = `SELECT body FROM staking_snapshots WHERE height <= $1 ORDER BY height DESC LIMIT 1`
	default:
		q = `SELECT body FROM staking_snapshots WHERE height <= ? ORDER BY height DESC LIMIT 1`
	}

	// Heights are stored as BIGINT; clamp so heights above MaxInt64 (such as
	// the maximum uint64) still compare as "latest" rather than wrapping
	// negative.
	bound := int64(math.MaxInt64)
	if height < math.MaxInt64 {
		bound = int64(height)
	}

	var body []byte
	row := s.db.QueryRowContext(ctx, q, bound)
	if scanErr := row.Scan(&body); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no snapshot found at or before height %d", height)
		}
		return nil, errors.NewStorageError("failed to load snapshot at height %d", height, scanErr)
	}

	st, err = decodeStaking(body)
	if err != nil {
		return nil, errors.NewProcessingError("failed to decode staking snapshot at height %d", height, err)
	}
	return st, nil
}

// Heights returns every persisted height in ascending order, used by replay
// to reconstruct state from genesis (spec.md 8.8).
func (s *Store) Heights(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT height FROM staking_snapshots ORDER BY height ASC`)
	if err != nil {
		return nil, errors.NewStorageError("failed to list snapshot heights", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, errors.NewStorageError("failed to scan snapshot height", err)
		}
		out = append(out, uint64(h))
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeStaking(st *model.Staking) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeStaking(body []byte) (*model.Staking, error) {
	st := &model.Staking{}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(st); err != nil {
		return nil, err
	}
	return st, nil
}
