package store

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

// NewsStore persists processed items in the "news" collection. A unique
// index on normalizedUrl mirrors the processor's in-memory dedup index as a
// defense-in-depth measure.
type NewsStore struct {
	collection *mongo.Collection
}

func NewNewsStore(db *mongo.Database) (*NewsStore, error) {
	collection := db.Collection("news")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalizedUrl", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "publishedAt", Value: -1}}},
		{Keys: bson.D{{Key: "impactScore", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}

	return &NewsStore{collection: collection}, nil
}

// Insert appends one processed item. A duplicate-URL insert is absorbed (the
// store-level dedup constraint doing its job), not surfaced as an error.
func (s *NewsStore) Insert(ctx context.Context, item *model.NewsItem) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.collection.InsertOne(ctx, item)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.MongoOperationsTotal.WithLabelValues("insert", "news", "duplicate").Inc()
			log.Printf("Duplicate URL during insert: %s", item.URL)
			return nil
		}
		metrics.MongoOperationsTotal.WithLabelValues("insert", "news", "error").Inc()
		return err
	}

	metrics.MongoOperationsTotal.WithLabelValues("insert", "news", "ok").Inc()
	return nil
}

// NewsQuery filters a listing request; zero values mean "no filter".
type NewsQuery struct {
	Source    string
	Category  string
	MinImpact float64
	Ticker    string
	Person    string
	StartTime float64
	EndTime   float64
	Limit     int64
	Offset    int64
}

// List returns matching items newest-first plus the total match count.
func (s *NewsStore) List(ctx context.Context, q NewsQuery) ([]model.NewsItem, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if q.Source != "" {
		filter["source"] = q.Source
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.MinImpact > 0 {
		filter["impactScore"] = bson.M{"$gte": q.MinImpact}
	}
	if q.Ticker != "" {
		filter["tickers"] = q.Ticker
	}
	if q.Person != "" {
		filter["people"] = bson.M{"$regex": q.Person, "$options": "i"}
	}
	timeFilter := bson.M{}
	if q.StartTime > 0 {
		timeFilter["$gte"] = q.StartTime
	}
	if q.EndTime > 0 {
		timeFilter["$lte"] = q.EndTime
	}
	if len(timeFilter) > 0 {
		filter["publishedAt"] = timeFilter
	}

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"publishedAt": -1}).
		SetSkip(q.Offset).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		metrics.MongoOperationsTotal.WithLabelValues("find", "news", "error").Inc()
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var items []model.NewsItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	metrics.MongoOperationsTotal.WithLabelValues("find", "news", "ok").Inc()
	return items, total, nil
}

// Stats aggregates item counts and average impact for the stats endpoint.
type Stats struct {
	TotalItems    int64   `json:"total_news_items"`
	ItemsLast24h  int64   `json:"items_last_24h"`
	AverageImpact float64 `json:"average_impact"`
}

func (s *NewsStore) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	dayAgo := float64(time.Now().Add(-24 * time.Hour).Unix())
	last24h, err := s.collection.CountDocuments(ctx, bson.M{"publishedAt": bson.M{"$gt": dayAgo}})
	if err != nil {
		return nil, err
	}

	pipeline := []bson.M{
		{"$match": bson.M{"impactScore": bson.M{"$gt": 0}}},
		{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$impactScore"}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	avg := 0.0
	var rows []bson.M
	if err := cursor.All(ctx, &rows); err == nil && len(rows) > 0 {
		if v, ok := rows[0]["avg"].(float64); ok {
			avg = v
		}
	}

	return &Stats{TotalItems: total, ItemsLast24h: last24h, AverageImpact: avg}, nil
}

// StartCleanup deletes items older than the retention window on a fixed
// interval until ctx is cancelled.
func (s *NewsStore) StartCleanup(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := float64(time.Now().Add(-retention).Unix())
			res, err := s.collection.DeleteMany(ctx, bson.M{"publishedAt": bson.M{"$lt": cutoff}})
			if err != nil {
				log.Printf("Failed to clean up old news items: %v", err)
				continue
			}
			if res.DeletedCount > 0 {
				log.Printf("Cleaned up %d old news items", res.DeletedCount)
			}
		}
	}
}
