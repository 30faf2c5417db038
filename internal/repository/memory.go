package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used by the local runner and by tests.
// When created with namespace names only those namespaces are bound;
// with none, every namespace is accepted.
type Memory struct {
	mu    sync.RWMutex
	bound map[string]bool
	data  map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory(namespaces ...string) *Memory {
	m := &Memory{data: make(map[string]map[string][]byte)}
	if len(namespaces) > 0 {
		m.bound = make(map[string]bool, len(namespaces))
		for _, ns := range namespaces {
			m.bound[ns] = true
		}
	}
	return m
}

func (m *Memory) isBound(op, namespace string) bool {
	if m.bound == nil || m.bound[namespace] {
		return true
	}
	slog.Error("namespace is not bound", "op", op, "namespace", namespace)
	return false
}

// Put stores value as JSON under key, replacing any previous value.
func (m *Memory) Put(_ context.Context, namespace, key string, value any) bool {
	if !m.isBound("put", namespace) {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("failed to encode value", "namespace", namespace, "key", key, "err", err)
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	ns[key] = raw
	return true
}

// Get returns a copy of the raw JSON stored under key.
func (m *Memory) Get(_ context.Context, namespace, key string) (json.RawMessage, bool) {
	if !m.isBound("get", namespace) {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[namespace][key]
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out, true
}

// Delete removes key. Deleting an absent key succeeds.
func (m *Memory) Delete(_ context.Context, namespace, key string) bool {
	if !m.isBound("delete", namespace) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return true
}

// ListKeys returns the keys of namespace starting with prefix, sorted.
func (m *Memory) ListKeys(_ context.Context, namespace, prefix string) []string {
	if !m.isBound("list", namespace) {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data[namespace] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of records in namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[namespace])
}
