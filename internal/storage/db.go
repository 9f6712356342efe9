package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"szattr/internal"
)

type DB struct {
	conn *sql.DB
}

type RunRow struct {
	ID        int
	TraceID   string
	Command   string
	Status    string
	Counts    internal.RunCounts
	CreatedAt string
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  command TEXT NOT NULL,
  status TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_stats (
  source TEXT NOT NULL,
  geo TEXT NOT NULL,
  statName TEXT NOT NULL,
  value INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(source, geo, statName)
);

CREATE TABLE IF NOT EXISTS invalid_countries (
  geo TEXT NOT NULL,
  value TEXT NOT NULL,
  hits INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(geo, value)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(traceID, command, status string, counts internal.RunCounts) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, command, status, countsJson) VALUES (?, ?, ?, ?)`, traceID, command, status, string(countsJSON))
	return err
}

func (d *DB) ListRuns(limit int) ([]RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, command, status, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var countsJSON string
		if err := rows.Scan(&row.ID, &row.TraceID, &row.Command, &row.Status, &countsJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceFileStats stores the latest column counts for one source/geo file, dropping
// columns that are no longer present.
func (d *DB) ReplaceFileStats(source, geo string, counts internal.RunCounts) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM file_stats WHERE source = ? AND geo = ?`, source, geo); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO file_stats (source, geo, statName, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	columns := make([]string, 0, len(counts))
	for column := range counts {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		if _, err := stmt.Exec(source, geo, column, counts[column]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetFileStats(source, geo string) (internal.RunCounts, error) {
	rows, err := d.conn.Query(`SELECT statName, value FROM file_stats WHERE source = ? AND geo = ?`, source, geo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := internal.RunCounts{}
	for rows.Next() {
		var column string
		var value int
		if err := rows.Scan(&column, &value); err != nil {
			return nil, err
		}
		out[column] = value
	}
	return out, rows.Err()
}

// AddInvalidCountries accumulates per-geo counts of addresses rejected on country.
func (d *DB) AddInvalidCountries(log map[string]map[string]int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO invalid_countries (geo, value, hits) VALUES (?, ?, ?)
ON CONFLICT(geo, value) DO UPDATE SET hits = hits + excluded.hits, updatedAt = CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for geo, values := range log {
		for value, count := range values {
			if _, err := stmt.Exec(geo, value, count); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) InvalidCountries(geo string) (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT value, hits FROM invalid_countries WHERE geo = ?`, geo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		out[value] = count
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
