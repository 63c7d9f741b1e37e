package state

import (
	"context"
	"fmt"
	"sync"
)

type InMemoryStateManager struct {
	lock     sync.RWMutex
	snapshot *Snapshot
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{
		snapshot: &Snapshot{},
	}
}

func (m *InMemoryStateManager) Get(ctx context.Context) (*Snapshot, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	copy := *m.snapshot
	copy.Prints = append([]string(nil), m.snapshot.Prints...)
	return &copy, nil
}

func (m *InMemoryStateManager) Set(ctx context.Context, snapshot *Snapshot) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}

	m.snapshot = snapshot
	return nil
}
