package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/bots"
	"github.com/marmos91/tgcloud/pkg/models"
)

type uploadResult struct {
	chunk models.Chunk
	err   error
}

// UploadFile uploads the file at path under its own path as the logical
// name, streaming UploadEvents to events (which may be nil).
func (e *Engine) UploadFile(ctx context.Context, path string, events chan<- UploadEvent) error {
	return e.UploadFileAs(ctx, path, path, events)
}

// UploadFileAs uploads the file at path under the logical name. The upload
// is atomic from the namespace's point of view: metadata appears only after
// every chunk is in the blob tier, and a failure on either side rolls the
// other back.
func (e *Engine) UploadFileAs(ctx context.Context, path, name string, events chan<- UploadEvent) error {
	err := e.uploadFile(ctx, path, name, events)
	e.metrics.ObserveTransfer("upload", err)
	return err
}

func (e *Engine) uploadFile(ctx context.Context, path, name string, events chan<- UploadEvent) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	totalSize := fi.Size()
	spans := planChunks(totalSize, e.cfg.ChunkSize)

	progress := &atomic.Int64{}
	sendUpload(events, UploadEvent{
		State:       UploadStarted,
		TotalSize:   totalSize,
		TotalChunks: len(spans),
		Progress:    progress,
	})

	sendUpload(events, UploadEvent{State: UploadHashing})
	sum, err := sha256File(path)
	if err != nil {
		sendUpload(events, UploadEvent{State: UploadFailed, Err: err})
		return err
	}
	sendUpload(events, UploadEvent{State: UploadHashComplete, SHA256: sum})

	// Single-chunk files go to the least-used bot; anything larger spreads
	// round-robin over the whole active set.
	botList, err := e.selectBots(ctx, totalSize)
	if err != nil {
		sendUpload(events, UploadEvent{State: UploadFailed, Err: err})
		return err
	}

	botIDs := make([]string, len(botList))
	tokens := make(map[string]string, len(botList))
	for i, b := range botList {
		botIDs[i] = b.BotID
		tokens[b.BotID] = b.Token
	}

	gates := newGateSet(e.cfg.MaxGlobalConcurrency, e.cfg.MaxPerBotConcurrency, botIDs)
	filename := filepath.Base(path)

	results := make(chan uploadResult, len(spans))
	for _, span := range spans {
		botID := botIDs[span.index%len(botIDs)]
		go e.uploadChunk(ctx, gates, span, path, filename, botID, tokens[botID], progress, results)
	}

	// Drain every worker even after the first failure: rollback needs to
	// know about every chunk that made it to the blob tier.
	chunks := make([]models.Chunk, 0, len(spans))
	var firstErr error
	for range spans {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		chunks = append(chunks, res.chunk)
	}

	if firstErr != nil {
		e.rollbackChunks(ctx, chunks, tokens)
		sendUpload(events, UploadEvent{State: UploadFailed, Err: firstErr})
		return fmt.Errorf("uploading %s: %w", name, firstErr)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	meta := &models.FileMetadata{
		FileID:       uuid.NewString(),
		OriginalName: name,
		Size:         totalSize,
		ChunkSize:    e.cfg.ChunkSize,
		TotalChunks:  len(spans),
		SHA256:       sum,
		Chunks:       chunks,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.store.SaveFile(ctx, meta); err != nil {
		// Tail of the two-phase commit: blobs were only prepared, so an
		// unfinished metadata insert means they all come back out.
		e.rollbackChunks(ctx, chunks, tokens)
		err = fmt.Errorf("committing metadata for %s: %w", name, err)
		sendUpload(events, UploadEvent{State: UploadFailed, Err: err})
		return err
	}

	// The counters are advisory; a failed increment is not worth failing a
	// committed upload over.
	for _, botID := range distinctBots(chunks) {
		if err := e.bots.IncrementUsage(ctx, botID); err != nil {
			logger.Warn("failed to increment bot usage", "bot_id", botID, "error", err)
		}
	}

	logger.Info("upload complete",
		"name", name, "file_id", meta.FileID, "size", totalSize, "chunks", len(chunks))
	sendUpload(events, UploadEvent{State: UploadCompleted, FileID: meta.FileID})
	return nil
}

func (e *Engine) selectBots(ctx context.Context, totalSize int64) ([]models.Bot, error) {
	if totalSize > e.cfg.ChunkSize {
		botList, err := e.bots.ActiveBots(ctx)
		if err != nil {
			return nil, err
		}
		if len(botList) == 0 {
			return nil, bots.ErrNoActiveBots
		}
		return botList, nil
	}
	b, err := e.bots.UploadBot(ctx)
	if err != nil {
		return nil, err
	}
	return []models.Bot{b}, nil
}

func (e *Engine) uploadChunk(
	ctx context.Context,
	gates *gateSet,
	span chunkSpan,
	path, filename, botID, token string,
	progress *atomic.Int64,
	results chan<- uploadResult,
) {
	release, err := gates.acquire(ctx, botID)
	if err != nil {
		results <- uploadResult{err: fmt.Errorf("chunk %d: %w", span.index, err)}
		return
	}
	defer release()

	chunkName := fmt.Sprintf("%s.chunk%d", filename, span.index)

	// Each attempt re-opens the source and re-seeks; a half-consumed
	// stream cannot back a second multipart body.
	chunk, err := withRetry(ctx, "upload", e.metrics, func(ctx context.Context) (models.Chunk, error) {
		f, err := os.Open(path)
		if err != nil {
			return models.Chunk{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		if _, err := f.Seek(span.offset, io.SeekStart); err != nil {
			return models.Chunk{}, fmt.Errorf("seeking to chunk %d: %w", span.index, err)
		}

		r := newCountingReader(io.LimitReader(f, span.length), progress)
		blobID, msgID, err := e.blob.Upload(ctx, token, e.cfg.ChatID, chunkName, r)
		if err != nil {
			return models.Chunk{}, err
		}
		return models.Chunk{
			Index:  span.index,
			BotID:  botID,
			BlobID: blobID,
			MsgID:  msgID,
			Size:   span.length,
		}, nil
	})
	if err != nil {
		results <- uploadResult{err: fmt.Errorf("chunk %d (bot %s): %w", span.index, botID, err)}
		return
	}

	e.metrics.AddUploadedBytes(chunk.Size)
	results <- uploadResult{chunk: chunk}
}

// rollbackChunks best-effort deletes every chunk that made it to the blob
// tier, using each chunk's own recorded bot. Failures are logged and
// swallowed; the orphaned blob is unreachable once the metadata insert is
// abandoned.
func (e *Engine) rollbackChunks(ctx context.Context, chunks []models.Chunk, tokens map[string]string) {
	for _, c := range chunks {
		token, ok := tokens[c.BotID]
		if !ok {
			logger.Warn("rollback skipped chunk with unknown bot", "chunk", c.Index, "bot_id", c.BotID)
			continue
		}
		if err := e.blob.Delete(ctx, token, e.cfg.ChatID, c.MsgID); err != nil {
			logger.Warn("rollback delete failed", "chunk", c.Index, "bot_id", c.BotID, "error", err)
		}
	}
}

func distinctBots(chunks []models.Chunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.BotID]; !ok {
			seen[c.BotID] = struct{}{}
			out = append(out, c.BotID)
		}
	}
	sort.Strings(out)
	return out
}
