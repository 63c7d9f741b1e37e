package repositories

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is a Repository backed by maps. It drops everything on
// restart, so it is only suitable for tests and dry runs.
type InMemoryRepository struct {
	lock    sync.Mutex
	entries map[int64]*LedgerEntry
	checks  map[int64]*CheckRecord
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[int64]*LedgerEntry),
		checks:  make(map[int64]*CheckRecord),
	}
}

func (r *InMemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) InsertLedgerEntry(ctx context.Context, entry *LedgerEntry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.entries[entry.RemoteIndex]; ok {
		return nil
	}
	copied := *entry
	copied.Applied = false
	copied.InstanceID = ""
	copied.AppliedAt = 0
	r.entries[entry.RemoteIndex] = &copied
	return nil
}

func (r *InMemoryRepository) GetLedgerEntry(ctx context.Context, remoteIndex int64) (*LedgerEntry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.entries[remoteIndex]
	if !ok {
		return nil, &ErrNotFound{}
	}
	copied := *entry
	return &copied, nil
}

func (r *InMemoryRepository) MarkLedgerApplied(ctx context.Context, remoteIndex int64, instanceID string, appliedAt int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.entries[remoteIndex]
	if !ok || entry.Applied {
		return nil
	}
	entry.Applied = true
	entry.InstanceID = instanceID
	entry.AppliedAt = appliedAt
	return nil
}

func (r *InMemoryRepository) ListUnappliedLedgerEntries(ctx context.Context) ([]*LedgerEntry, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var entries []*LedgerEntry
	for _, entry := range r.entries {
		if entry.Applied {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RemoteIndex < entries[j].RemoteIndex
	})
	return entries, nil
}

func (r *InMemoryRepository) CountLedgerEntries(ctx context.Context) (int, int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	applied := 0
	for _, entry := range r.entries {
		if entry.Applied {
			applied++
		}
	}
	return applied, len(r.entries), nil
}

func (r *InMemoryRepository) InsertCheck(ctx context.Context, check *CheckRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.checks[check.CheckID]; ok {
		return nil
	}
	copied := *check
	copied.Reported = false
	copied.Converted = false
	r.checks[check.CheckID] = &copied
	return nil
}

func (r *InMemoryRepository) GetCheck(ctx context.Context, checkID int64) (*CheckRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	check, ok := r.checks[checkID]
	if !ok {
		return nil, &ErrNotFound{}
	}
	copied := *check
	return &copied, nil
}

func (r *InMemoryRepository) MarkChecksReported(ctx context.Context, checkIDs []int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, id := range checkIDs {
		if check, ok := r.checks[id]; ok {
			check.Reported = true
		}
	}
	return nil
}

func (r *InMemoryRepository) MarkCheckConverted(ctx context.Context, checkID int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if check, ok := r.checks[checkID]; ok {
		check.Converted = true
	}
	return nil
}

func (r *InMemoryRepository) ClearCheckConverted(ctx context.Context, checkID int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if check, ok := r.checks[checkID]; ok {
		check.Converted = false
	}
	return nil
}

func (r *InMemoryRepository) ListUnreportedChecks(ctx context.Context) ([]*CheckRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var checks []*CheckRecord
	for _, check := range r.checks {
		if check.Reported {
			continue
		}
		copied := *check
		checks = append(checks, &copied)
	}
	sort.Slice(checks, func(i, j int) bool {
		if checks[i].QueuedAt != checks[j].QueuedAt {
			return checks[i].QueuedAt < checks[j].QueuedAt
		}
		return checks[i].CheckID < checks[j].CheckID
	})
	return checks, nil
}

func (r *InMemoryRepository) CountChecks(ctx context.Context) (int, int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	reported := 0
	for _, check := range r.checks {
		if check.Reported {
			reported++
		}
	}
	return reported, len(r.checks), nil
}
