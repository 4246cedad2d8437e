package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/models"
)

type deleteResult struct {
	index int
	err   error
}

// DeleteFile removes the logical name: every chunk from the blob tier
// first, then the metadata record. Deletion is all-or-nothing on the
// metadata side; if any chunk delete fails the record stays so the
// operation can be retried, and a *DeleteError reports which chunks failed.
func (e *Engine) DeleteFile(ctx context.Context, name string) error {
	err := e.deleteFile(ctx, name)
	e.metrics.ObserveTransfer("delete", err)
	return err
}

func (e *Engine) deleteFile(ctx context.Context, name string) error {
	meta, err := e.store.FileByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", name, err)
	}

	botIDs := distinctBots(meta.Chunks)
	tokens, err := e.bots.TokenMap(ctx, botIDs)
	if err != nil {
		return fmt.Errorf("resolving bot tokens for %s: %w", name, err)
	}

	gates := newGateSet(e.cfg.MaxGlobalConcurrency, e.cfg.MaxPerBotConcurrency, botIDs)

	results := make(chan deleteResult, len(meta.Chunks))
	for _, c := range meta.Chunks {
		go e.deleteChunk(ctx, gates, c, tokens[c.BotID], results)
	}

	var errs []error
	for range meta.Chunks {
		res := <-results
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	if len(errs) > 0 {
		// Keep the metadata so a retry can find the surviving chunks.
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return &DeleteError{Failed: len(errs), Total: len(meta.Chunks), Errs: errs}
	}

	if err := e.store.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("metadata removal for %s: %w", name, err)
	}

	logger.Info("delete complete", "name", name, "file_id", meta.FileID, "chunks", meta.TotalChunks)
	return nil
}

func (e *Engine) deleteChunk(
	ctx context.Context,
	gates *gateSet,
	c models.Chunk,
	token string,
	results chan<- deleteResult,
) {
	release, err := gates.acquire(ctx, c.BotID)
	if err != nil {
		results <- deleteResult{index: c.Index, err: fmt.Errorf("chunk %d: %w", c.Index, err)}
		return
	}
	defer release()

	_, err = withRetry(ctx, "delete", e.metrics, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.blob.Delete(ctx, token, e.cfg.ChatID, c.MsgID)
	})
	if err != nil {
		results <- deleteResult{index: c.Index, err: fmt.Errorf("chunk %d (bot %s): %w", c.Index, c.BotID, err)}
		return
	}
	results <- deleteResult{index: c.Index}
}
