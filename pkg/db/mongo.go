package db

import (
	"context"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds the connection details for a MongoDB episode collection.
type MongoConfig struct {
	// URI example: "mongodb://localhost:27017"
	URI        string
	Database   string
	Collection string
}

// MongoClient wraps the MongoDB client and the episode collection.
type MongoClient struct {
	cfg         MongoConfig
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewMongoClient constructs a client. Nothing is dialed until Connect.
func NewMongoClient(cfg MongoConfig) *MongoClient {
	return &MongoClient{cfg: cfg}
}

// Connect dials MongoDB and verifies connectivity.
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.cfg.URI == "" {
		return eris.New("mongo URI is required")
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(c.cfg.URI))
	if err != nil {
		return eris.Wrap(err, "connect mongo")
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return eris.Wrap(err, "ping mongo")
	}

	c.mongoClient = mongoClient
	c.collection = mongoClient.Database(c.cfg.Database).Collection(c.cfg.Collection)
	return nil
}

// Close disconnects from MongoDB.
func (c *MongoClient) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// Collection returns the episode collection, or nil before Connect.
func (c *MongoClient) Collection() *mongo.Collection {
	return c.collection
}
