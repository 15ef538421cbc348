package store

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/sceneref/internal/model"
)

// rowsPerInsert bounds the multi-row INSERT size under SQLite's variable limit.
const rowsPerInsert = 200

// SQLite is the SQLite cache backend. Save replaces both tables in one
// transaction.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dbPath with WAL mode enabled.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Migrate creates the cache tables. Idempotent.
func (s *SQLite) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS unit_mod_times (
  content_id      TEXT PRIMARY KEY,
  mod_time        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_records (
  content_id      TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  document        TEXT NOT NULL,
  node_paths      TEXT NOT NULL,
  PRIMARY KEY (content_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_usage_records_document ON usage_records(document);
`

// Load reads the whole cache. Every id with a stored mod time has an
// entry in Usages, possibly empty.
func (s *SQLite) Load() (Snapshot, error) {
	snap := NewSnapshot()

	rows, err := s.db.Query("SELECT content_id, mod_time FROM unit_mod_times")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load mod times: %w", err)
	}
	for rows.Next() {
		var id string
		var mod int64
		if err := rows.Scan(&id, &mod); err != nil {
			rows.Close()
			return Snapshot{}, fmt.Errorf("scan mod time: %w", err)
		}
		snap.ModTimes[id] = mod
		snap.Usages[id] = []model.UsageRecord{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load mod times: %w", err)
	}

	rows, err = s.db.Query("SELECT content_id, document, node_paths FROM usage_records ORDER BY content_id, ordinal")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load usage records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, doc, paths string
		if err := rows.Scan(&id, &doc, &paths); err != nil {
			return Snapshot{}, fmt.Errorf("scan usage record: %w", err)
		}
		nodes, err := unmarshalPaths(paths)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode node paths for %s: %w", id, err)
		}
		snap.Usages[id] = append(snap.Usages[id], model.UsageRecord{Document: doc, NodePaths: nodes})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load usage records: %w", err)
	}
	return snap, nil
}

// Save replaces the stored cache with snap.
func (s *SQLite) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM usage_records"); err != nil {
		return fmt.Errorf("clear usage records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM unit_mod_times"); err != nil {
		return fmt.Errorf("clear mod times: %w", err)
	}

	ids := make([]string, 0, len(snap.ModTimes))
	for id := range snap.ModTimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var modArgs []any
	for _, id := range ids {
		modArgs = append(modArgs, id, snap.ModTimes[id])
	}
	if err := insertRows(tx, "INSERT INTO unit_mod_times (content_id, mod_time) VALUES ", 2, modArgs); err != nil {
		return fmt.Errorf("insert mod times: %w", err)
	}

	usageIDs := make([]string, 0, len(snap.Usages))
	for id := range snap.Usages {
		usageIDs = append(usageIDs, id)
	}
	sort.Strings(usageIDs)

	var recArgs []any
	for _, id := range usageIDs {
		for i, rec := range snap.Usages[id] {
			recArgs = append(recArgs, id, i, rec.Document, marshalPaths(rec.NodePaths))
		}
	}
	if err := insertRows(tx, "INSERT INTO usage_records (content_id, ordinal, document, node_paths) VALUES ", 4, recArgs); err != nil {
		return fmt.Errorf("insert usage records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertRows runs prefix with batched placeholder groups of width columns.
func insertRows(tx *sql.Tx, prefix string, width int, args []any) error {
	step := rowsPerInsert * width
	for start := 0; start < len(args); start += step {
		end := min(start+step, len(args))
		chunk := args[start:end]
		if _, err := tx.Exec(prefix+placeholderList(len(chunk)/width, width), chunk...); err != nil {
			return err
		}
	}
	return nil
}
