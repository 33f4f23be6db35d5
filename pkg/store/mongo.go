package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"podcast-search/pkg/domain"
)

// MongoStore keeps one document per episode. A unique compound index on
// (podcast_id, id) enforces the at-most-one-insert invariant server side.
type MongoStore struct {
	collection *mongo.Collection
	closer     func(context.Context) error
}

// NewMongoStore ensures the unique index exists on collection.
func NewMongoStore(ctx context.Context, collection *mongo.Collection, closer func(context.Context) error) (*MongoStore, error) {
	if collection == nil {
		return nil, eris.New("mongo store: collection not initialized")
	}

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "podcast_id", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("episode_key"),
		},
		{
			Keys:    bson.D{{Key: "broadcast_date", Value: -1}},
			Options: options.Index().SetName("broadcast_date"),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "mongo store: create indexes")
	}

	return &MongoStore{collection: collection, closer: closer}, nil
}

func keyFilter(key domain.EpisodeKey) bson.M {
	return bson.M{"podcast_id": key.PodcastID, "id": key.ID}
}

// Upsert implements Store.
func (s *MongoStore) Upsert(ctx context.Context, ep *domain.Episode) (Outcome, error) {
	norm, err := normalize(ep)
	if err != nil {
		return 0, err
	}

	// $setOnInsert leaves existing documents untouched.
	res, err := s.collection.UpdateOne(ctx,
		keyFilter(norm.Key()),
		bson.M{"$setOnInsert": norm},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// Two concurrent upserts can both miss the filter; the loser hits
		// the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return SkippedDuplicate, nil
		}
		return 0, eris.Wrapf(err, "mongo store: upsert %s", norm.Key())
	}
	if res.UpsertedCount == 0 {
		return SkippedDuplicate, nil
	}
	return Inserted, nil
}

// Reclassify implements Store.
func (s *MongoStore) Reclassify(ctx context.Context, key domain.EpisodeKey, categories []string) error {
	res, err := s.collection.UpdateOne(ctx, keyFilter(key),
		bson.M{"$set": bson.M{"categories": taxonomyOnly(categories)}})
	if err != nil {
		return eris.Wrapf(err, "mongo store: reclassify %s", key)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// All implements Store.
func (s *MongoStore) All(ctx context.Context) ([]domain.Episode, error) {
	return s.find(ctx, bson.M{})
}

// Unclassified implements Store.
func (s *MongoStore) Unclassified(ctx context.Context) ([]domain.Episode, error) {
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"categories": bson.M{"$size": 0}},
		bson.M{"categories": bson.M{"$exists": false}},
		bson.M{"categories": nil},
	}})
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, key domain.EpisodeKey) (*domain.Episode, error) {
	var ep domain.Episode
	err := s.collection.FindOne(ctx, keyFilter(key)).Decode(&ep)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mongo store: get %s", key)
	}
	fill(&ep)
	return &ep, nil
}

// Keys implements Store.
func (s *MongoStore) Keys(ctx context.Context, podcastID string) (map[string]bool, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"podcast_id": podcastID},
		options.Find().SetProjection(bson.M{"id": 1, "_id": 0}))
	if err != nil {
		return nil, eris.Wrap(err, "mongo store: query keys")
	}
	defer cursor.Close(ctx)

	keys := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			ID string `bson:"id"`
		}
		if err := cursor.Decode(&result); err != nil {
			zap.L().Warn("mongo store: skipping undecodable key", zap.Error(err))
			continue
		}
		if result.ID != "" {
			keys[result.ID] = true
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, eris.Wrap(err, "mongo store: cursor error")
	}
	return keys, nil
}

// Count implements Store.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, eris.Wrap(err, "mongo store: count")
	}
	return int(n), nil
}

// UpdateBraggoscopeURLs implements Store.
func (s *MongoStore) UpdateBraggoscopeURLs(ctx context.Context) (int, error) {
	episodes, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	var models []mongo.WriteModel
	for _, ep := range episodes {
		want := domain.BraggoscopeURL(ep.ID, ep.BroadcastDate)
		if ep.BraggoscopeURL == want {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(keyFilter(ep.Key())).
			SetUpdate(bson.M{"$set": bson.M{"braggoscope_url": want}}))
	}
	if len(models) == 0 {
		return 0, nil
	}

	res, err := s.collection.BulkWrite(ctx, models)
	if err != nil {
		return 0, eris.Wrap(err, "mongo store: update braggoscope urls")
	}
	return int(res.ModifiedCount), nil
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]domain.Episode, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "broadcast_date", Value: -1},
		{Key: "podcast_id", Value: 1},
		{Key: "id", Value: 1},
	})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, eris.Wrap(err, "mongo store: find episodes")
	}
	defer cursor.Close(ctx)

	var episodes []domain.Episode
	if err := cursor.All(ctx, &episodes); err != nil {
		return nil, eris.Wrap(err, "mongo store: decode episodes")
	}
	for i := range episodes {
		fill(&episodes[i])
	}
	return episodes, nil
}

// fill restores the non-nil list invariant after BSON decoding.
func fill(ep *domain.Episode) {
	ep.Contributors = nonNil(ep.Contributors)
	ep.Categories = nonNil(ep.Categories)
	ep.ReadingList = nonNil(ep.ReadingList)
	ep.BroadcastDate = ep.BroadcastDate.UTC()
}
