package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the whole tree in process. It backs local development and
// tests; nothing is persisted.
type MemoryStore struct {
	mu   sync.RWMutex
	root map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{root: make(map[string]any)}
}

func (m *MemoryStore) ReadAll(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	segments, err := SplitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := getNode(m.root, segments)
	return snapshotOf(node, ok)
}

func (m *MemoryStore) ReadFiltered(ctx context.Context, path, field string, value any) ([]Child, error) {
	snapshot, err := m.ReadAll(ctx, path)
	if err != nil {
		return nil, err
	}
	return filterChildren(snapshot.Children, field, value)
}

func (m *MemoryStore) PushNew(ctx context.Context, path string, value any) (string, error) {
	if _, err := SplitPath(path); err != nil {
		return "", err
	}
	key := newPushKey()
	if err := m.SetAt(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MemoryStore) SetAt(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	setNode(m.root, segments, normalized)
	return nil
}

func (m *MemoryStore) UpdateAt(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	updates, err := planUpdate(segments, fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	applyUpdate(m.root, updates)
	return nil
}

func (m *MemoryStore) DeleteAt(ctx context.Context, path string) error {
	return m.SetAt(ctx, path, nil)
}
