package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectToDB dials mongoURI and returns the database named in its path.
// The returned func disconnects the client.
func ConnectToDB(mongoURI string) (*mongo.Database, func(), error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("parse MONGODB_URI: %w", err)
	}

	dbName := strings.TrimPrefix(uri.Path, "/")
	if dbName == "" {
		dbName = "codebreak"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetRegistry(Registry()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Errorf("Error disconnecting mongodb %s", err)
		}
	}

	return client.Database(dbName), disconnect, nil
}

// Indexes are the constraints the store relies on to reject conflicting
// writes inside a transaction.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"rounds": {
			{Keys: bson.D{{Key: "round_no", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "is_active", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}).
					SetName("one_active_round"),
			},
		},
		"user_codes": {
			{Keys: bson.D{{Key: "round_id", Value: 1}, {Key: "player_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "round_id", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"winners": {
			{Keys: bson.D{{Key: "round_id", Value: 1}, {Key: "rank", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"payment_requests": {
			{Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "round_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
}

// EnsureIndexes creates the collections and indexes. Collections must exist
// before the first transaction touches them.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for name, models := range Indexes() {
		if !have[name] {
			if err := db.CreateCollection(ctx, name); err != nil {
				return fmt.Errorf("create collection %s: %w", name, err)
			}
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	if !have["players"] {
		if err := db.CreateCollection(ctx, "players"); err != nil {
			return fmt.Errorf("create collection players: %w", err)
		}
	}
	return nil
}
