// Package engine implements the transfer engine: the chunked, parallel,
// multi-bot upload/download pipeline between the local filesystem, the
// blob tier, and the metadata store.
//
// The engine splits files into fixed-size chunks, assigns them to bots
// round-robin, and moves them through a two-layer admission scheme (a
// global gate bounding total in-flight chunk operations and a per-bot gate
// honoring the blob tier's per-sender ceiling). Uploads are a two-phase
// commit: the blob tier is treated as prepared until the metadata insert is
// durable, and a failure on either side rolls the other back. Downloads
// reassemble chunks through temp files and verify the stored SHA-256
// before the output is considered real.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/tgcloud/pkg/bots"
	"github.com/marmos91/tgcloud/pkg/metrics"
	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

// Defaults for the engine configuration.
const (
	// DefaultChunkSize is the chunk ceiling: 256 MiB.
	DefaultChunkSize int64 = 256 << 20

	// DefaultMaxGlobalConcurrency bounds in-flight chunk operations
	// across all bots.
	DefaultMaxGlobalConcurrency = 12

	// DefaultMaxPerBotConcurrency bounds in-flight chunk operations per
	// individual bot.
	DefaultMaxPerBotConcurrency = 3
)

// BlobClient is the blob-tier surface the engine needs. *telegram.Client
// implements it; tests substitute fakes.
type BlobClient interface {
	// Upload posts a document and returns its blob ID and message ID.
	Upload(ctx context.Context, token, chat, filename string, r io.Reader) (blobID string, msgID int64, err error)

	// ResolveDownload exchanges a blob ID for a short-lived download URL.
	ResolveDownload(ctx context.Context, token, blobID string) (string, error)

	// StreamDownload opens the byte stream behind a resolved URL.
	StreamDownload(ctx context.Context, url string) (io.ReadCloser, error)

	// Delete removes a posted document by message ID.
	Delete(ctx context.Context, token, chat string, msgID int64) error
}

// Config holds the engine's tunables.
type Config struct {
	// ChatID is the destination chat; every chunk of every file goes here.
	ChatID string

	// ChunkSize is the per-chunk byte ceiling. Defaults to DefaultChunkSize.
	ChunkSize int64

	// MaxGlobalConcurrency is the global gate capacity.
	MaxGlobalConcurrency int

	// MaxPerBotConcurrency is each per-bot gate's capacity.
	MaxPerBotConcurrency int
}

// Engine is the transfer engine. Safe for concurrent use, though two
// concurrent writers on the same logical path are not coordinated.
type Engine struct {
	store   store.Store
	blob    BlobClient
	bots    *bots.Manager
	cfg     Config
	metrics *metrics.Metrics
}

// New creates an Engine. m may be nil to disable instrumentation.
func New(st store.Store, blob BlobClient, bm *bots.Manager, cfg Config, m *metrics.Metrics) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxGlobalConcurrency <= 0 {
		cfg.MaxGlobalConcurrency = DefaultMaxGlobalConcurrency
	}
	if cfg.MaxPerBotConcurrency <= 0 {
		cfg.MaxPerBotConcurrency = DefaultMaxPerBotConcurrency
	}
	return &Engine{
		store:   st,
		blob:    blob,
		bots:    bm,
		cfg:     cfg,
		metrics: m,
	}
}

// chunkSpan is one planned chunk: a byte range of the source file.
type chunkSpan struct {
	index  int
	offset int64
	length int64
}

// planChunks splits size bytes into chunkSize-ceiling spans. An empty file
// still yields one zero-length span so every file has at least one blob.
func planChunks(size, chunkSize int64) []chunkSpan {
	if size == 0 {
		return []chunkSpan{{index: 0, offset: 0, length: 0}}
	}
	total := int((size + chunkSize - 1) / chunkSize)
	spans := make([]chunkSpan, 0, total)
	for i := 0; i < total; i++ {
		offset := int64(i) * chunkSize
		length := chunkSize
		if remaining := size - offset; remaining < length {
			length = remaining
		}
		spans = append(spans, chunkSpan{index: i, offset: offset, length: length})
	}
	return spans
}

// ListFiles returns the metadata records under prefix. store.AllFiles (or
// the empty string) selects the whole namespace.
func (e *Engine) ListFiles(ctx context.Context, prefix string) ([]models.FileMetadata, error) {
	return e.store.ListFiles(ctx, prefix)
}

// FileByName returns the metadata record for a logical path.
func (e *Engine) FileByName(ctx context.Context, name string) (*models.FileMetadata, error) {
	return e.store.FileByName(ctx, name)
}

// FileByID returns the metadata record for a file ID.
func (e *Engine) FileByID(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	return e.store.FileByID(ctx, fileID)
}

// RenameFile atomically renames a logical path. Fails if newName is taken
// or oldName is absent; no blob-tier interaction.
func (e *Engine) RenameFile(ctx context.Context, oldName, newName string) error {
	if err := e.store.RenameFile(ctx, oldName, newName); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", oldName, newName, err)
	}
	return nil
}
