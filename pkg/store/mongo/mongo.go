// Package mongo provides the MongoDB-backed metadata store. This is the
// default backend: one collection of file documents keyed by generated
// object IDs, plus a bot roster collection keyed by bot ID.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

const (
	defaultDatabase = "tgcloud"
	connectTimeout  = 10 * time.Second

	filesCollection = "files"
	botsCollection  = "bots"
)

// Store is a store.Store backed by MongoDB. Safe for concurrent use; the
// underlying driver pools connections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Option customizes a Store.
type Option func(*config)

type config struct {
	database string
}

// WithDatabase overrides the database name (default "tgcloud").
func WithDatabase(name string) Option {
	return func(c *config) { c.database = name }
}

// New connects to MongoDB and ensures the uniqueness indexes the namespace
// invariants depend on (original_name, file_id, bot_id).
func New(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	cfg := config{database: defaultDatabase}
	for _, o := range opts {
		o(&cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("tgcloud"))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) files() *mongo.Collection { return s.db.Collection(filesCollection) }
func (s *Store) bots() *mongo.Collection  { return s.db.Collection(botsCollection) }

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.files().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "original_name", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "file_id", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("creating file indexes: %w", err)
	}
	_, err = s.bots().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bot_id", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("creating bot index: %w", err)
	}
	return nil
}

func (s *Store) SaveFile(ctx context.Context, meta *models.FileMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	_, err := s.files().InsertOne(ctx, meta)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", store.ErrFileExists, meta.OriginalName)
	}
	if err != nil {
		return fmt.Errorf("inserting metadata for %s: %w", meta.OriginalName, err)
	}
	return nil
}

func (s *Store) FileByName(ctx context.Context, name string) (*models.FileMetadata, error) {
	return s.findOne(ctx, bson.M{"original_name": name}, name)
}

func (s *Store) FileByID(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	return s.findOne(ctx, bson.M{"file_id": fileID}, "id "+fileID)
}

func (s *Store) findOne(ctx context.Context, filter bson.M, what string) (*models.FileMetadata, error) {
	var meta models.FileMetadata
	err := s.files().FindOne(ctx, filter).Decode(&meta)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", store.ErrFileNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", what, err)
	}
	return &meta, nil
}

func (s *Store) ListFiles(ctx context.Context, prefix string) ([]models.FileMetadata, error) {
	filter := bson.M{}
	if prefix != "" && prefix != store.AllFiles {
		filter["original_name"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	cur, err := s.files().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "original_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.FileMetadata
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding file list: %w", err)
	}
	return out, nil
}

func (s *Store) RenameFile(ctx context.Context, oldName, newName string) error {
	n, err := s.files().CountDocuments(ctx, bson.M{"original_name": newName})
	if err != nil {
		return fmt.Errorf("checking rename target %s: %w", newName, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", store.ErrFileExists, newName)
	}

	res, err := s.files().UpdateOne(ctx,
		bson.M{"original_name": oldName},
		bson.M{"$set": bson.M{"original_name": newName}})
	if mongo.IsDuplicateKeyError(err) {
		// Lost the race with a concurrent writer claiming newName.
		return fmt.Errorf("%w: %s", store.ErrFileExists, newName)
	}
	if err != nil {
		return fmt.Errorf("renaming %s: %w", oldName, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrFileNotFound, oldName)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, name string) error {
	res, err := s.files().DeleteOne(ctx, bson.M{"original_name": name})
	if err != nil {
		return fmt.Errorf("deleting metadata for %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrFileNotFound, name)
	}
	return nil
}

func (s *Store) UpsertBot(ctx context.Context, bot models.Bot) error {
	_, err := s.bots().UpdateOne(ctx,
		bson.M{"bot_id": bot.BotID},
		bson.M{
			"$set":         bson.M{"token": bot.Token, "active": bot.Active},
			"$setOnInsert": bson.M{"upload_count": int64(0)},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting bot %s: %w", bot.BotID, err)
	}
	return nil
}

func (s *Store) ActiveBots(ctx context.Context) ([]models.Bot, error) {
	cur, err := s.bots().Find(ctx, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "bot_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing active bots: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Bot
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding bot list: %w", err)
	}
	return out, nil
}

func (s *Store) IncrementBotUsage(ctx context.Context, botID string) error {
	res, err := s.bots().UpdateOne(ctx,
		bson.M{"bot_id": botID},
		bson.M{"$inc": bson.M{"upload_count": 1}})
	if err != nil {
		return fmt.Errorf("incrementing usage for bot %s: %w", botID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", store.ErrBotNotFound, botID)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
