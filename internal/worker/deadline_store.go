package worker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Deadline is a pending auto-close check.
type Deadline struct {
	TicketID  int64
	NotBefore time.Time
}

// DeadlineStore keeps at most one deadline per ticket.
type DeadlineStore interface {
	// Put stores or replaces the deadline of a ticket.
	Put(ctx context.Context, ticketID int64, notBefore time.Time) error
	// Due returns up to limit deadlines at or before now, earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]Deadline, error)
	// Remove deletes the entry unless it was replaced by a different deadline.
	Remove(ctx context.Context, d Deadline) error
}

// MemoryDeadlineStore is a process-local DeadlineStore. Its contents are lost
// on restart and rebuilt by reconciliation.
type MemoryDeadlineStore struct {
	mu        sync.Mutex
	deadlines map[int64]time.Time
}

// NewMemoryDeadlineStore returns an empty store.
func NewMemoryDeadlineStore() *MemoryDeadlineStore {
	return &MemoryDeadlineStore{deadlines: make(map[int64]time.Time)}
}

func (s *MemoryDeadlineStore) Put(_ context.Context, ticketID int64, notBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[ticketID] = notBefore.Truncate(time.Millisecond)
	return nil
}

func (s *MemoryDeadlineStore) Due(_ context.Context, now time.Time, limit int) ([]Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Deadline
	for id, at := range s.deadlines {
		if !at.After(now) {
			due = append(due, Deadline{TicketID: id, NotBefore: at})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NotBefore.Equal(due[j].NotBefore) {
			return due[i].TicketID < due[j].TicketID
		}
		return due[i].NotBefore.Before(due[j].NotBefore)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryDeadlineStore) Remove(_ context.Context, d Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.deadlines[d.TicketID]; ok && at.Equal(d.NotBefore) {
		delete(s.deadlines, d.TicketID)
	}
	return nil
}

// Len reports the number of stored deadlines.
func (s *MemoryDeadlineStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadlines)
}
