package drivers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/data-tracks/DataTracks/persist"
	"github.com/data-tracks/DataTracks/value"
)

func init() {
	persist.RegisterEngine("sqlite", newSQLiteEngine)
}

// sqliteEngine mirrors postgresEngine's fixed trains(event_ts_ms,
// origin_line, payload) schema, storing payload as a JSON text column
// since modernc.org/sqlite has no native jsonb type.
type sqliteEngine struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trains (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_ts_ms INTEGER NOT NULL,
	origin_line INTEGER NOT NULL,
	payload     TEXT NOT NULL
)`

func newSQLiteEngine(dsn string) (persist.Engine, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("drivers: sqlite open: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("drivers: sqlite schema: %w", err)
	}
	return &sqliteEngine{db: db}, nil
}

func (e *sqliteEngine) Apply(ctx context.Context, train *value.Train) error {
	ms, _, _ := train.EventTS.Time()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("drivers: sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO trains (event_ts_ms, origin_line, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("drivers: sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range train.Wagons() {
		payload := map[string]interface{}{}
		for _, entry := range w.Entries() {
			payload[fmt.Sprintf("line_%d", entry.LineID)] = valueToAny(entry.Value)
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("drivers: sqlite marshal payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ms, train.OriginLine, string(encoded)); err != nil {
			return fmt.Errorf("drivers: sqlite insert: %w", err)
		}
	}
	return tx.Commit()
}

func (e *sqliteEngine) Close() error {
	return e.db.Close()
}
