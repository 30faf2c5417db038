// Package content translates domain operations into namespaced key-value
// calls. Call sites never build raw keys; every key comes from keys.go.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"guide-bot/internal/repository"
)

// Repository is the typed view over the key-value store.
type Repository struct {
	store repository.Store
}

// New creates a Repository over store.
func New(store repository.Store) (*Repository, error) {
	if store == nil {
		return nil, errors.New("content: store must not be nil")
	}
	return &Repository{store: store}, nil
}

func decode[T any](raw json.RawMessage, namespace, key string) (T, bool) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Error("failed to decode stored value", "namespace", namespace, "key", key, "err", err)
		return v, false
	}
	return v, true
}

func load[T any](ctx context.Context, s repository.Store, namespace, key string) (T, bool) {
	raw, ok := s.Get(ctx, namespace, key)
	if !ok {
		var zero T
		return zero, false
	}
	return decode[T](raw, namespace, key)
}
