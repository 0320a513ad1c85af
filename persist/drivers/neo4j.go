package drivers

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/data-tracks/DataTracks/persist"
	"github.com/data-tracks/DataTracks/value"
)

func init() {
	persist.RegisterEngine("neo4j", newNeo4jEngine)
}

// neo4jEngine applies a train by MERGEing each Node/Edge value it
// contains directly into the graph. Values of any other kind are
// skipped, so a wagon carrying only scalar lines writes nothing.
type neo4jEngine struct {
	driver neo4j.DriverWithContext
}

func newNeo4jEngine(dsn string) (persist.Engine, error) {
	driver, err := neo4j.NewDriverWithContext(dsn, neo4j.NoAuth())
	if err != nil {
		return nil, fmt.Errorf("drivers: neo4j driver: %w", err)
	}
	return &neo4jEngine{driver: driver}, nil
}

func (e *neo4jEngine) Apply(ctx context.Context, train *value.Train) error {
	for _, w := range train.Wagons() {
		for _, entry := range w.Entries() {
			if err := e.applyValue(ctx, entry.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *neo4jEngine) applyValue(ctx context.Context, v value.Value) error {
	switch v.Kind() {
	case value.KindNode:
		id, labels, props, _ := v.Node()
		_, err := neo4j.ExecuteQuery(ctx, e.driver,
			"MERGE (n {id: $id}) SET n += $props WITH n CALL apoc.create.addLabels(n, $labels) YIELD node RETURN node",
			map[string]interface{}{"id": id, "props": dictToParams(props), "labels": labels},
			neo4j.EagerResultTransformer)
		if err != nil {
			return fmt.Errorf("drivers: neo4j merge node: %w", err)
		}
	case value.KindEdge:
		id, label, startID, endID, props, _ := v.Edge()
		_, err := neo4j.ExecuteQuery(ctx, e.driver,
			"MATCH (a {id: $startID}), (b {id: $endID}) MERGE (a)-[r:`"+sanitizeLabel(label)+"` {id: $id}]->(b) SET r += $props",
			map[string]interface{}{"id": id, "startID": startID, "endID": endID, "props": dictToParams(props)},
			neo4j.EagerResultTransformer)
		if err != nil {
			return fmt.Errorf("drivers: neo4j merge edge: %w", err)
		}
	}
	return nil
}

// sanitizeLabel strips backticks from a relationship label before
// interpolating it into Cypher, since driver parameters cannot bind
// relationship type names.
func sanitizeLabel(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		if r != '`' {
			out = append(out, r)
		}
	}
	return string(out)
}

func dictToParams(d value.Dict) map[string]interface{} {
	out := make(map[string]interface{}, d.Len())
	for _, e := range d.Entries() {
		out[e.Key] = valueToAny(e.Value)
	}
	return out
}

func (e *neo4jEngine) Close() error {
	return e.driver.Close(context.Background())
}
