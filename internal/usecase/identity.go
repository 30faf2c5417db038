package usecase

import (
	"context"
	"sync"

	"guide-bot/internal/domain"
)

// identityCache memoizes the bot's own identity. It is an optimization only:
// a cold cache fetches, and a failed fetch is not remembered.
type identityCache struct {
	mu sync.Mutex
	id *domain.BotIdentity
}

func (c *identityCache) getOrFetch(ctx context.Context, fetch func(context.Context) (domain.BotIdentity, error)) (domain.BotIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != nil {
		return *c.id, nil
	}
	id, err := fetch(ctx)
	if err != nil {
		return domain.BotIdentity{}, err
	}
	c.id = &id
	return id, nil
}
