package ticklog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kilianp07/trafficgrid/core/coupling"
)

const (
	historyCollection = "ticks"
	latestCollection  = "latest_status"
)

// ErrNoStatus is returned by Latest when a run has not recorded any tick.
var ErrNoStatus = errors.New("ticklog: no status recorded")

// MongoStore keeps the tick history in one collection and upserts the most
// recent status of each run in another.
type MongoStore struct {
	client  *mongo.Client
	history *mongo.Collection
	latest  *mongo.Collection
}

// NewMongoStore connects to uri and pings the server.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(database)
	return &MongoStore{
		client:  client,
		history: db.Collection(historyCollection),
		latest:  db.Collection(latestCollection),
	}, nil
}

// Append inserts the record and refreshes the latest status of its run.
func (s *MongoStore) Append(ctx context.Context, rec Record) error {
	if _, err := s.history.InsertOne(ctx, rec); err != nil {
		return err
	}
	_, err := s.latest.UpdateOne(ctx,
		bson.M{"_id": rec.RunID},
		bson.D{{Key: "$set", Value: bson.M{
			"tick":      rec.Tick,
			"timestamp": rec.Timestamp,
			"status":    rec.Status,
		}}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Query returns records matching q ordered by time then tick.
func (s *MongoStore) Query(ctx context.Context, q Query) ([]Record, error) {
	filter := bson.M{}
	ts := bson.M{}
	if !q.Start.IsZero() {
		ts["$gte"] = q.Start
	}
	if !q.End.IsZero() {
		ts["$lte"] = q.End
	}
	if len(ts) > 0 {
		filter["timestamp"] = ts
	}
	if q.RunID != "" {
		filter["run_id"] = q.RunID
	}
	if q.StationID != "" {
		filter["sessions.stationid"] = q.StationID
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "tick", Value: 1}})
	cur, err := s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var res []Record
	if err := cur.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Latest returns the most recent status recorded for runID.
func (s *MongoStore) Latest(ctx context.Context, runID string) (coupling.Status, error) {
	var doc struct {
		Status coupling.Status `bson:"status"`
	}
	err := s.latest.FindOne(ctx, bson.M{"_id": runID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return coupling.Status{}, ErrNoStatus
	}
	return doc.Status, err
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
