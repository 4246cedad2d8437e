// Package models defines the document types shared between the metadata
// store, the bot manager, and the transfer engine.
package models

import (
	"fmt"
	"time"
)

// Chunk is a contiguous byte range of a file stored as one document in the
// blob tier. Chunks are immutable once written.
type Chunk struct {
	// Index is the zero-based ordinal of this chunk within its file.
	Index int `bson:"index" json:"index"`

	// BotID identifies the sender that posted this chunk. Downloads and
	// deletes must use this bot, never a re-selected one.
	BotID string `bson:"bot_id" json:"bot_id"`

	// BlobID is the opaque identifier returned by the blob tier, used to
	// resolve the chunk for download.
	BlobID string `bson:"blob_id" json:"blob_id"`

	// MsgID is the message identifier used to delete the chunk.
	MsgID int64 `bson:"msg_id" json:"msg_id"`

	// Size is the chunk's byte length.
	Size int64 `bson:"size" json:"size"`
}

// FileMetadata describes one logical file and the chunks it was split into.
// Except for OriginalName (mutable via rename) the record is immutable.
type FileMetadata struct {
	// FileID is the engine-assigned unique identifier (UUID string form).
	FileID string `bson:"file_id" json:"file_id"`

	// OriginalName is the logical path exposed to users. Unique across the
	// namespace.
	OriginalName string `bson:"original_name" json:"original_name"`

	// Size is the total file size in bytes.
	Size int64 `bson:"size" json:"size"`

	// ChunkSize records the chunk ceiling the engine used at upload time.
	ChunkSize int64 `bson:"chunk_size" json:"chunk_size"`

	// TotalChunks equals ceil(Size/ChunkSize), minimum 1.
	TotalChunks int `bson:"total_chunks" json:"total_chunks"`

	// SHA256 is the lowercase hex digest of the whole plaintext file.
	SHA256 string `bson:"sha256" json:"sha256"`

	// Chunks is ordered by Index and has exactly TotalChunks entries.
	Chunks []Chunk `bson:"chunks" json:"chunks"`

	// CreatedAt is the wall-clock time of the successful metadata commit.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Bot is an authenticated sender identity in the blob tier.
type Bot struct {
	BotID  string `bson:"bot_id" json:"bot_id"`
	Token  string `bson:"token" json:"-"`
	Active bool   `bson:"active" json:"active"`

	// UploadCount is an advisory monotonic counter used for least-used
	// bot selection.
	UploadCount int64 `bson:"upload_count" json:"upload_count"`
}

// Validate checks the persisted-state invariants of a metadata record.
// Stores call this before any insert; a violation indicates a programmer
// error in the transfer engine, not bad user input.
func (m *FileMetadata) Validate() error {
	if m.FileID == "" {
		return fmt.Errorf("metadata for %q has empty file_id", m.OriginalName)
	}
	if m.OriginalName == "" {
		return fmt.Errorf("metadata %s has empty original_name", m.FileID)
	}
	if m.TotalChunks < 1 {
		return fmt.Errorf("metadata %s has total_chunks %d, want >= 1", m.FileID, m.TotalChunks)
	}
	if len(m.Chunks) != m.TotalChunks {
		return fmt.Errorf("metadata %s has %d chunks, want %d", m.FileID, len(m.Chunks), m.TotalChunks)
	}
	var sum int64
	for i, c := range m.Chunks {
		if c.Index != i {
			return fmt.Errorf("metadata %s chunk %d has index %d", m.FileID, i, c.Index)
		}
		if c.Size < 0 {
			return fmt.Errorf("metadata %s chunk %d has negative size", m.FileID, i)
		}
		if c.BotID == "" {
			return fmt.Errorf("metadata %s chunk %d has empty bot_id", m.FileID, i)
		}
		sum += c.Size
	}
	if sum != m.Size {
		return fmt.Errorf("metadata %s chunk sizes sum to %d, want %d", m.FileID, sum, m.Size)
	}
	if len(m.SHA256) != 64 {
		return fmt.Errorf("metadata %s has malformed sha256 %q", m.FileID, m.SHA256)
	}
	return nil
}
