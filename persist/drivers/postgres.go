package drivers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/data-tracks/DataTracks/persist"
	"github.com/data-tracks/DataTracks/value"
)

func init() {
	persist.RegisterEngine("postgres", newPostgresEngine)
}

// postgresEngine applies a train as one INSERT per wagon into a fixed
// "trains" table with a jsonb payload column, keeping the schema stable
// regardless of which lines a plan happens to wire into this binding.
type postgresEngine struct {
	conn *pgx.Conn
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trains (
	id          BIGSERIAL PRIMARY KEY,
	event_ts_ms BIGINT NOT NULL,
	origin_line INTEGER NOT NULL,
	payload     JSONB NOT NULL
)`

func newPostgresEngine(dsn string) (persist.Engine, error) {
	conn, err := pgx.Connect(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("drivers: postgres connect: %w", err)
	}
	if _, err := conn.Exec(context.Background(), postgresSchema); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("drivers: postgres schema: %w", err)
	}
	return &postgresEngine{conn: conn}, nil
}

func (e *postgresEngine) Apply(ctx context.Context, train *value.Train) error {
	ms, _, _ := train.EventTS.Time()
	batch := &pgx.Batch{}
	for _, w := range train.Wagons() {
		payload := map[string]interface{}{}
		for _, entry := range w.Entries() {
			payload[fmt.Sprintf("line_%d", entry.LineID)] = valueToAny(entry.Value)
		}
		batch.Queue(
			"INSERT INTO trains (event_ts_ms, origin_line, payload) VALUES ($1, $2, $3)",
			ms, train.OriginLine, payload,
		)
	}
	br := e.conn.SendBatch(ctx, batch)
	defer br.Close()
	for range train.Wagons() {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("drivers: postgres insert: %w", err)
		}
	}
	return nil
}

func (e *postgresEngine) Close() error {
	return e.conn.Close(context.Background())
}
