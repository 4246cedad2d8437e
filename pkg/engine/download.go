package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/models"
)

type downloadResult struct {
	index int
	err   error
}

// DownloadFile fetches the logical name into outPath, streaming
// DownloadEvents to events (which may be nil). Chunks land in per-chunk temp
// files next to the output and are merged in index order; the result is
// verified against the stored SHA-256 before it is considered real.
func (e *Engine) DownloadFile(ctx context.Context, name, outPath string, events chan<- DownloadEvent) error {
	err := e.downloadFile(ctx, name, outPath, events)
	e.metrics.ObserveTransfer("download", err)
	return err
}

func (e *Engine) downloadFile(ctx context.Context, name, outPath string, events chan<- DownloadEvent) error {
	meta, err := e.store.FileByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", name, err)
	}

	progress := &atomic.Int64{}
	sendDownload(events, DownloadEvent{
		State:       DownloadStarted,
		TotalSize:   meta.Size,
		TotalChunks: meta.TotalChunks,
		Progress:    progress,
	})

	fail := func(err error) error {
		sendDownload(events, DownloadEvent{State: DownloadFailed, Err: err})
		return err
	}

	botIDs := distinctBots(meta.Chunks)
	tokens, err := e.bots.TokenMap(ctx, botIDs)
	if err != nil {
		return fail(fmt.Errorf("resolving bot tokens for %s: %w", name, err))
	}

	gates := newGateSet(e.cfg.MaxGlobalConcurrency, e.cfg.MaxPerBotConcurrency, botIDs)

	results := make(chan downloadResult, len(meta.Chunks))
	for _, c := range meta.Chunks {
		go e.downloadChunk(ctx, gates, c, tokens[c.BotID], tempChunkPath(outPath, c.Index), progress, results)
	}

	var firstErr error
	for range meta.Chunks {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	if firstErr != nil {
		removeTempChunks(outPath, meta.TotalChunks)
		return fail(fmt.Errorf("downloading %s: %w", name, firstErr))
	}

	sendDownload(events, DownloadEvent{State: DownloadMerging})
	if err := mergeChunks(outPath, meta.TotalChunks); err != nil {
		removeTempChunks(outPath, meta.TotalChunks)
		return fail(fmt.Errorf("merging %s: %w", name, err))
	}

	sendDownload(events, DownloadEvent{State: DownloadVerifying})
	sum, err := sha256File(outPath)
	if err != nil {
		removeTempChunks(outPath, meta.TotalChunks)
		return fail(err)
	}
	if sum != meta.SHA256 {
		// Never hand back a file that does not hash to the recorded digest.
		os.Remove(outPath)
		removeTempChunks(outPath, meta.TotalChunks)
		return fail(&IntegrityError{Expected: meta.SHA256, Actual: sum})
	}

	removeTempChunks(outPath, meta.TotalChunks)
	e.metrics.AddDownloadedBytes(meta.Size)

	logger.Info("download complete",
		"name", name, "path", outPath, "size", meta.Size, "chunks", meta.TotalChunks)
	sendDownload(events, DownloadEvent{State: DownloadCompleted, Path: outPath})
	return nil
}

func (e *Engine) downloadChunk(
	ctx context.Context,
	gates *gateSet,
	c models.Chunk,
	token, tmpPath string,
	progress *atomic.Int64,
	results chan<- downloadResult,
) {
	release, err := gates.acquire(ctx, c.BotID)
	if err != nil {
		results <- downloadResult{index: c.Index, err: fmt.Errorf("chunk %d: %w", c.Index, err)}
		return
	}
	defer release()

	// Every attempt re-resolves the download URL and truncates the temp
	// file; resolved URLs expire and a partial temp would double-count.
	_, err = withRetry(ctx, "download", e.metrics, func(ctx context.Context) (struct{}, error) {
		url, err := e.blob.ResolveDownload(ctx, token, c.BlobID)
		if err != nil {
			return struct{}{}, err
		}
		body, err := e.blob.StreamDownload(ctx, url)
		if err != nil {
			return struct{}{}, err
		}
		defer body.Close()

		f, err := os.Create(tmpPath)
		if err != nil {
			return struct{}{}, fmt.Errorf("creating %s: %w", tmpPath, err)
		}
		if _, err := copyWithProgress(f, body, progress); err != nil {
			f.Close()
			return struct{}{}, err
		}
		return struct{}{}, f.Close()
	})
	if err != nil {
		results <- downloadResult{index: c.Index, err: fmt.Errorf("chunk %d (bot %s): %w", c.Index, c.BotID, err)}
		return
	}
	results <- downloadResult{index: c.Index}
}

// mergeChunks concatenates the temp chunk files into outPath in index order.
func mergeChunks(outPath string, total int) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	for i := 0; i < total; i++ {
		if err := appendChunk(out, tempChunkPath(outPath, i)); err != nil {
			return err
		}
	}
	return out.Close()
}

func appendChunk(out *os.File, tmpPath string) error {
	in, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", tmpPath, err)
	}
	defer in.Close()
	if _, err := copyWithProgress(out, in, new(atomic.Int64)); err != nil {
		return fmt.Errorf("appending %s: %w", tmpPath, err)
	}
	return nil
}

func tempChunkPath(outPath string, index int) string {
	return fmt.Sprintf("%s.chunk_%d.tmp", outPath, index)
}

func removeTempChunks(outPath string, total int) {
	for i := 0; i < total; i++ {
		tmp := tempChunkPath(outPath, i)
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp chunk", "path", tmp, "error", err)
		}
	}
}
