package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// gate is a FIFO counting admission gate. Acquisition suspends the caller
// until a permit frees up or the context dies.
type gate struct {
	sem *semaphore.Weighted
}

func newGate(capacity int) *gate {
	return &gate{sem: semaphore.NewWeighted(int64(capacity))}
}

func (g *gate) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrShutdown, err)
	}
	return nil
}

func (g *gate) release() {
	g.sem.Release(1)
}

// gateSet couples the global gate with one per-bot gate per participating
// bot. Acquisition order is fixed everywhere: global first, then the bot.
// Taking a bot permit while blocked on global admission would let a stalled
// bot pin capacity other bots could use.
type gateSet struct {
	global *gate
	perBot map[string]*gate
}

func newGateSet(globalCap, perBotCap int, botIDs []string) *gateSet {
	perBot := make(map[string]*gate, len(botIDs))
	for _, id := range botIDs {
		if _, ok := perBot[id]; !ok {
			perBot[id] = newGate(perBotCap)
		}
	}
	return &gateSet{
		global: newGate(globalCap),
		perBot: perBot,
	}
}

// acquire takes the global permit and then the bot's permit, releasing the
// global one again if the bot acquisition fails. The returned release frees
// both in reverse order.
func (s *gateSet) acquire(ctx context.Context, botID string) (release func(), err error) {
	bot, ok := s.perBot[botID]
	if !ok {
		return nil, fmt.Errorf("no admission gate for bot %s", botID)
	}
	if err := s.global.acquire(ctx); err != nil {
		return nil, err
	}
	if err := bot.acquire(ctx); err != nil {
		s.global.release()
		return nil, err
	}
	return func() {
		bot.release()
		s.global.release()
	}, nil
}
