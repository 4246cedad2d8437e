// Package badger provides an embedded metadata store backed by BadgerDB.
//
// It serves deployments without a MongoDB instance: everything lives in a
// local key-value directory. File records are stored under their original
// name with a secondary index from file ID to name; bots live under their
// bot ID. Multi-key updates (save, rename, delete) run inside a single
// Badger transaction, which gives the same single-document atomicity the
// Mongo backend has.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

const (
	filePrefix   = "file:"
	fileIDPrefix = "fileid:"
	botPrefix    = "bot:"
)

// Store is a store.Store backed by an embedded BadgerDB directory.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the Badger directory at path.
func New(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

var _ store.Store = (*Store)(nil)

func fileKey(name string) []byte { return []byte(filePrefix + name) }
func fileIDKey(id string) []byte { return []byte(fileIDPrefix + id) }
func botKey(botID string) []byte { return []byte(botPrefix + botID) }

func encode(v any) ([]byte, error) { return json.Marshal(v) }

func decodeFile(data []byte) (*models.FileMetadata, error) {
	var meta models.FileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding file record: %w", err)
	}
	return &meta, nil
}

// botRecord is the persisted bot shape. models.Bot hides Token from JSON
// API responses, so bots need their own encoding here or the token would be
// dropped on the round trip.
type botRecord struct {
	BotID       string `json:"bot_id"`
	Token       string `json:"token"`
	Active      bool   `json:"active"`
	UploadCount int64  `json:"upload_count"`
}

func toBotRecord(b models.Bot) botRecord {
	return botRecord{BotID: b.BotID, Token: b.Token, Active: b.Active, UploadCount: b.UploadCount}
}

func (r botRecord) toModel() models.Bot {
	return models.Bot{BotID: r.BotID, Token: r.Token, Active: r.Active, UploadCount: r.UploadCount}
}

func decodeBot(data []byte) (*botRecord, error) {
	var rec botRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding bot record: %w", err)
	}
	return &rec, nil
}

func (s *Store) SaveFile(ctx context.Context, meta *models.FileMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	data, err := encode(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", meta.OriginalName, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(fileKey(meta.OriginalName)); err == nil {
			return fmt.Errorf("%w: %s", store.ErrFileExists, meta.OriginalName)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(fileKey(meta.OriginalName), data); err != nil {
			return err
		}
		return txn.Set(fileIDKey(meta.FileID), []byte(meta.OriginalName))
	})
}

func (s *Store) FileByName(ctx context.Context, name string) (*models.FileMetadata, error) {
	var meta *models.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", store.ErrFileNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			meta, err = decodeFile(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Store) FileByID(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	var name string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileIDKey(fileID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: id %s", store.ErrFileNotFound, fileID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			name = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.FileByName(ctx, name)
}

func (s *Store) ListFiles(ctx context.Context, prefix string) ([]models.FileMetadata, error) {
	seek := filePrefix
	if prefix != "" && prefix != store.AllFiles {
		seek += prefix
	}
	var out []models.FileMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(seek)); it.ValidForPrefix([]byte(seek)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				meta, err := decodeFile(val)
				if err != nil {
					return err
				}
				out = append(out, *meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys iterate in byte order, which is already name order.
	return out, nil
}

func (s *Store) RenameFile(ctx context.Context, oldName, newName string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(fileKey(newName)); err == nil {
			return fmt.Errorf("%w: %s", store.ErrFileExists, newName)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		item, err := txn.Get(fileKey(oldName))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", store.ErrFileNotFound, oldName)
		}
		if err != nil {
			return err
		}
		var meta *models.FileMetadata
		if err := item.Value(func(val []byte) error {
			meta, err = decodeFile(val)
			return err
		}); err != nil {
			return err
		}

		meta.OriginalName = newName
		data, err := encode(meta)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", newName, err)
		}
		if err := txn.Delete(fileKey(oldName)); err != nil {
			return err
		}
		if err := txn.Set(fileKey(newName), data); err != nil {
			return err
		}
		return txn.Set(fileIDKey(meta.FileID), []byte(newName))
	})
}

func (s *Store) DeleteFile(ctx context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", store.ErrFileNotFound, name)
		}
		if err != nil {
			return err
		}
		var meta *models.FileMetadata
		if err := item.Value(func(val []byte) error {
			meta, err = decodeFile(val)
			return err
		}); err != nil {
			return err
		}
		if err := txn.Delete(fileKey(name)); err != nil {
			return err
		}
		return txn.Delete(fileIDKey(meta.FileID))
	})
}

func (s *Store) UpsertBot(ctx context.Context, bot models.Bot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec := toBotRecord(bot)
		item, err := txn.Get(botKey(bot.BotID))
		switch {
		case err == nil:
			// Existing bot: keep the usage counter, refresh the rest.
			var existing *botRecord
			if err := item.Value(func(val []byte) error {
				existing, err = decodeBot(val)
				return err
			}); err != nil {
				return err
			}
			rec.UploadCount = existing.UploadCount
		case errors.Is(err, badger.ErrKeyNotFound):
			rec.UploadCount = 0
		default:
			return err
		}
		data, err := encode(rec)
		if err != nil {
			return fmt.Errorf("encoding bot %s: %w", bot.BotID, err)
		}
		return txn.Set(botKey(bot.BotID), data)
	})
}

func (s *Store) ActiveBots(ctx context.Context) ([]models.Bot, error) {
	var out []models.Bot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(botPrefix)); it.ValidForPrefix([]byte(botPrefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeBot(val)
				if err != nil {
					return err
				}
				if rec.Active {
					out = append(out, rec.toModel())
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
	return out, nil
}

func (s *Store) IncrementBotUsage(ctx context.Context, botID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(botKey(botID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", store.ErrBotNotFound, botID)
		}
		if err != nil {
			return err
		}
		var rec *botRecord
		if err := item.Value(func(val []byte) error {
			rec, err = decodeBot(val)
			return err
		}); err != nil {
			return err
		}
		rec.UploadCount++
		data, err := encode(rec)
		if err != nil {
			return fmt.Errorf("encoding bot %s: %w", botID, err)
		}
		return txn.Set(botKey(botID), data)
	})
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}
