// Package memory provides an in-memory metadata store.
//
// It exists for tests and throwaway experiments: everything lives in two
// maps behind a mutex and is lost when the process exits. The behavior
// (uniqueness, sort order, sentinel errors) matches the persistent backends
// exactly so engine tests exercise the same contract the real stores honor.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

// Store is an in-memory store.Store implementation. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	files map[string]*models.FileMetadata // keyed by original name
	byID  map[string]string               // file ID -> original name
	bots  map[string]*models.Bot          // keyed by bot ID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		files: make(map[string]*models.FileMetadata),
		byID:  make(map[string]string),
		bots:  make(map[string]*models.Bot),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) SaveFile(ctx context.Context, meta *models.FileMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[meta.OriginalName]; ok {
		return fmt.Errorf("%w: %s", store.ErrFileExists, meta.OriginalName)
	}
	cp := *meta
	cp.Chunks = append([]models.Chunk(nil), meta.Chunks...)
	s.files[cp.OriginalName] = &cp
	s.byID[cp.FileID] = cp.OriginalName
	return nil
}

func (s *Store) FileByName(ctx context.Context, name string) (*models.FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrFileNotFound, name)
	}
	cp := *meta
	cp.Chunks = append([]models.Chunk(nil), meta.Chunks...)
	return &cp, nil
}

func (s *Store) FileByID(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	s.mu.RLock()
	name, ok := s.byID[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: id %s", store.ErrFileNotFound, fileID)
	}
	return s.FileByName(ctx, name)
}

func (s *Store) ListFiles(ctx context.Context, prefix string) ([]models.FileMetadata, error) {
	all := prefix == "" || prefix == store.AllFiles
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileMetadata, 0, len(s.files))
	for name, meta := range s.files {
		if all || strings.HasPrefix(name, prefix) {
			cp := *meta
			cp.Chunks = append([]models.Chunk(nil), meta.Chunks...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalName < out[j].OriginalName })
	return out, nil
}

func (s *Store) RenameFile(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[newName]; ok {
		return fmt.Errorf("%w: %s", store.ErrFileExists, newName)
	}
	meta, ok := s.files[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrFileNotFound, oldName)
	}
	delete(s.files, oldName)
	meta.OriginalName = newName
	s.files[newName] = meta
	s.byID[meta.FileID] = newName
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.files[name]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrFileNotFound, name)
	}
	delete(s.files, name)
	delete(s.byID, meta.FileID)
	return nil
}

func (s *Store) UpsertBot(ctx context.Context, bot models.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.bots[bot.BotID]; ok {
		existing.Token = bot.Token
		existing.Active = bot.Active
		return nil
	}
	cp := bot
	s.bots[bot.BotID] = &cp
	return nil
}

func (s *Store) ActiveBots(ctx context.Context) ([]models.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Bot, 0, len(s.bots))
	for _, b := range s.bots {
		if b.Active {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
	return out, nil
}

func (s *Store) IncrementBotUsage(ctx context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bots[botID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrBotNotFound, botID)
	}
	b.UploadCount++
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
