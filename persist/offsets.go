package persist

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Offsets is the durable applied_lsn cursor store backing Manager, one row
// per (engine_id, definition_id) pair, persisted to offsets.db alongside
// the WAL segments so a restart resumes each binding exactly where it
// left off rather than replaying everything from LSN 0.
type Offsets struct {
	db *sql.DB
}

// OpenOffsets opens (creating if necessary) the sqlite-backed cursor store
// at path.
func OpenOffsets(path string) (*Offsets, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open offsets db: %w", err)
	}
	// One connection serializes Load and Save on the single sqlite file.
	db.SetMaxOpenConns(1)
	const schema = `
CREATE TABLE IF NOT EXISTS applied_offsets (
	engine_id     TEXT NOT NULL,
	definition_id TEXT NOT NULL,
	applied_lsn   INTEGER NOT NULL,
	PRIMARY KEY (engine_id, definition_id)
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: create offsets schema: %w", err)
	}
	return &Offsets{db: db}, nil
}

// Save upserts the applied_lsn cursor for (engineID, definitionID).
func (o *Offsets) Save(engineID, definitionID string, lsn uint64) error {
	const stmt = `
INSERT INTO applied_offsets (engine_id, definition_id, applied_lsn)
VALUES (?, ?, ?)
ON CONFLICT (engine_id, definition_id) DO UPDATE SET applied_lsn = excluded.applied_lsn`
	if _, err := o.db.Exec(stmt, engineID, definitionID, int64(lsn)); err != nil {
		return fmt.Errorf("persist: save offset for %s/%s: %w", engineID, definitionID, err)
	}
	return nil
}

// Load returns the applied_lsn cursor for (engineID, definitionID), or 0
// if no row exists yet (the binding has never successfully applied a
// train).
func (o *Offsets) Load(engineID, definitionID string) (uint64, error) {
	const query = `SELECT applied_lsn FROM applied_offsets WHERE engine_id = ? AND definition_id = ?`
	var lsn int64
	err := o.db.QueryRow(query, engineID, definitionID).Scan(&lsn)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("persist: load offset for %s/%s: %w", engineID, definitionID, err)
	}
	return uint64(lsn), nil
}

// Close closes the underlying database handle.
func (o *Offsets) Close() error {
	return o.db.Close()
}
