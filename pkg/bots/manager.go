// Package bots manages the bot roster: selection of upload bots, the
// in-memory token cache, and usage accounting.
package bots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

// ErrNoActiveBots means the roster has no bot able to take an upload.
var ErrNoActiveBots = errors.New("no active bots in roster")

// Manager resolves active bots and caches their tokens. The cache is
// best-effort: tokens rarely rotate, so stale entries are tolerated and a
// lookup miss triggers exactly one refresh before failing.
type Manager struct {
	store store.BotStore

	mu     sync.RWMutex
	tokens map[string]string
}

// NewManager creates a Manager on top of the given roster store.
func NewManager(st store.BotStore) *Manager {
	return &Manager{
		store:  st,
		tokens: make(map[string]string),
	}
}

// UploadBot selects the bot for a single-bot upload: lowest upload count,
// ties broken by bot ID.
func (m *Manager) UploadBot(ctx context.Context) (models.Bot, error) {
	bots, err := m.ActiveBots(ctx)
	if err != nil {
		return models.Bot{}, err
	}
	if len(bots) == 0 {
		return models.Bot{}, ErrNoActiveBots
	}
	sort.Slice(bots, func(i, j int) bool {
		if bots[i].UploadCount != bots[j].UploadCount {
			return bots[i].UploadCount < bots[j].UploadCount
		}
		return bots[i].BotID < bots[j].BotID
	})
	return bots[0], nil
}

// ActiveBots returns the full active set sorted by bot ID and refreshes the
// token cache as a side effect.
func (m *Manager) ActiveBots(ctx context.Context) ([]models.Bot, error) {
	bots, err := m.store.ActiveBots(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active bots: %w", err)
	}
	m.mu.Lock()
	for _, b := range bots {
		m.tokens[b.BotID] = b.Token
	}
	m.mu.Unlock()
	return bots, nil
}

// Token resolves a single bot's token from the cache, refreshing once on a
// miss. A second miss is terminal.
func (m *Manager) Token(ctx context.Context, botID string) (string, error) {
	m.mu.RLock()
	tok, ok := m.tokens[botID]
	m.mu.RUnlock()
	if ok {
		return tok, nil
	}

	if _, err := m.ActiveBots(ctx); err != nil {
		return "", err
	}

	m.mu.RLock()
	tok, ok = m.tokens[botID]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", store.ErrBotNotFound, botID)
	}
	return tok, nil
}

// TokenMap resolves tokens for the given bot IDs. One cache refresh covers
// all misses; any ID still unresolved fails the whole call, because a chunk
// whose bot is gone from the roster is unreadable.
func (m *Manager) TokenMap(ctx context.Context, botIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(botIDs))
	var missing []string

	m.mu.RLock()
	for _, id := range botIDs {
		if tok, ok := m.tokens[id]; ok {
			out[id] = tok
		} else {
			missing = append(missing, id)
		}
	}
	m.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	if _, err := m.ActiveBots(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range missing {
		tok, ok := m.tokens[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrBotNotFound, id)
		}
		out[id] = tok
	}
	return out, nil
}

// IncrementUsage bumps a bot's advisory upload counter.
func (m *Manager) IncrementUsage(ctx context.Context, botID string) error {
	return m.store.IncrementBotUsage(ctx, botID)
}

// Register upserts the configured bots into the roster. Called once at
// startup; counters of known bots survive.
func (m *Manager) Register(ctx context.Context, bots []models.Bot) error {
	for _, b := range bots {
		b.Active = true
		if err := m.store.UpsertBot(ctx, b); err != nil {
			return fmt.Errorf("registering bot %s: %w", b.BotID, err)
		}
		logger.Debug("registered bot", "bot_id", b.BotID)
	}
	return nil
}
