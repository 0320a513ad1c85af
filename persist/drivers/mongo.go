// Package drivers provides the concrete persist.Engine implementations
// that back an engine binding's (scheme, dsn) pair: mongodb, postgres,
// neo4j and sqlite. Each file registers its scheme with
// persist.RegisterEngine in an init() the way transform/sql registers
// itself with transform.Register.
package drivers

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/data-tracks/DataTracks/persist"
	"github.com/data-tracks/DataTracks/value"
)

func init() {
	persist.RegisterEngine("mongodb", newMongoEngine)
}

// mongoEngine applies a train by inserting one document per wagon into a
// fixed collection, with one field per line named "line_<id>" (unlike
// value.Wagon's ToDict, which keys by the bare decimal line id), plus the
// train's event time and origin line.
type mongoEngine struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func newMongoEngine(dsn string) (persist.Engine, error) {
	dbName, collName := splitMongoTarget(dsn)
	client, err := mongo.Connect(options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("drivers: mongo connect: %w", err)
	}
	return &mongoEngine{client: client, coll: client.Database(dbName).Collection(collName)}, nil
}

// splitMongoTarget pulls "/db/collection" off the end of a mongodb:// URI,
// defaulting to database "datatracks" and collection "trains" when absent.
func splitMongoTarget(dsn string) (db, coll string) {
	db, coll = "datatracks", "trains"
	rest := dsn
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return db, coll
	}
	tail := rest[idx+1:]
	parts := strings.SplitN(tail, "/", 2)
	if parts[0] != "" {
		db = parts[0]
	}
	if len(parts) == 2 && parts[1] != "" {
		coll = parts[1]
	}
	return db, coll
}

func (e *mongoEngine) Apply(ctx context.Context, train *value.Train) error {
	if train.Len() == 0 {
		return nil
	}
	docs := make([]interface{}, 0, train.Len())
	ms, _, _ := train.EventTS.Time()
	for _, w := range train.Wagons() {
		doc := bson.M{"_event_ts_ms": ms, "_origin_line": train.OriginLine}
		for _, entry := range w.Entries() {
			doc[fmt.Sprintf("line_%d", entry.LineID)] = valueToAny(entry.Value)
		}
		docs = append(docs, doc)
	}
	if _, err := e.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("drivers: mongo insert: %w", err)
	}
	return nil
}

func (e *mongoEngine) Close() error {
	return e.client.Disconnect(context.Background())
}

// valueToAny renders a value.Value as a plain Go value suitable for BSON
// encoding. Node/Edge property bags flatten to maps; Array/Dict recurse.
func valueToAny(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindInt:
		n, _ := v.Int()
		return n
	case value.KindFloat:
		f, _ := v.FloatValue()
		return f
	case value.KindBool:
		b, _ := v.Bool()
		return b
	case value.KindText:
		s, _ := v.Text()
		return s
	case value.KindTime:
		ms, _, _ := v.Time()
		return ms
	case value.KindDate:
		d, _ := v.Date()
		return d
	case value.KindArray:
		items, _ := v.Array()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	case value.KindDict:
		d, _ := v.DictValue()
		out := bson.M{}
		for _, e := range d.Entries() {
			out[e.Key] = valueToAny(e.Value)
		}
		return out
	case value.KindNode:
		id, labels, props, _ := v.Node()
		out := bson.M{"_id": id, "_labels": labels}
		for _, e := range props.Entries() {
			out[e.Key] = valueToAny(e.Value)
		}
		return out
	case value.KindEdge:
		id, label, from, to, props, _ := v.Edge()
		out := bson.M{"_id": id, "_label": label, "_from": from, "_to": to}
		for _, e := range props.Entries() {
			out[e.Key] = valueToAny(e.Value)
		}
		return out
	default:
		return v.String()
	}
}
