// Package store defines the metadata store contract shared by all backends.
//
// The store owns the file namespace (unique original names), the integrity
// digests, and the bot roster. Every operation is single-document atomic;
// there are no cross-document transactions, which is what lets the transfer
// engine treat a metadata insert as the commit point of an upload.
package store

import (
	"context"

	"github.com/marmos91/tgcloud/pkg/models"
)

// AllFiles is the prefix value that selects the whole namespace in ListFiles.
// The empty string behaves the same way.
const AllFiles = "root"

// FileStore is the CRUD surface over file metadata records.
type FileStore interface {
	// SaveFile inserts a new metadata record. Fails with ErrFileExists if
	// the original name is already taken.
	SaveFile(ctx context.Context, meta *models.FileMetadata) error

	// FileByName looks a record up by its original name.
	// Returns ErrFileNotFound if absent.
	FileByName(ctx context.Context, name string) (*models.FileMetadata, error)

	// FileByID looks a record up by its engine-assigned file ID.
	// Returns ErrFileNotFound if absent.
	FileByID(ctx context.Context, fileID string) (*models.FileMetadata, error)

	// ListFiles returns every record whose original name starts with prefix.
	// AllFiles (or "") selects everything.
	ListFiles(ctx context.Context, prefix string) ([]models.FileMetadata, error)

	// RenameFile atomically updates a record's original name. Fails with
	// ErrFileExists if newName is taken and ErrFileNotFound if oldName is
	// absent. No blob-tier interaction.
	RenameFile(ctx context.Context, oldName, newName string) error

	// DeleteFile removes the record for name.
	// Returns ErrFileNotFound if absent.
	DeleteFile(ctx context.Context, name string) error
}

// BotStore is the CRUD surface over the bot roster.
type BotStore interface {
	// UpsertBot registers a bot or refreshes its token and active flag.
	// The upload counter of an existing bot is preserved.
	UpsertBot(ctx context.Context, bot models.Bot) error

	// ActiveBots returns every active bot, sorted by bot ID.
	ActiveBots(ctx context.Context) ([]models.Bot, error)

	// IncrementBotUsage bumps a bot's advisory upload counter.
	// Returns ErrBotNotFound if the bot is not in the roster.
	IncrementBotUsage(ctx context.Context, botID string) error
}

// Store is the full metadata store surface consumed by the transfer engine.
type Store interface {
	FileStore
	BotStore

	Close(ctx context.Context) error
}
