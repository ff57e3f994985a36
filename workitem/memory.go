package workitem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = &MemoryStore{}

// MemoryStore is the in-process Store used when no database is configured.
type MemoryStore struct {
	mux   sync.RWMutex
	items map[string]*WorkItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: map[string]*WorkItem{},
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, item *WorkItem) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	item.ID = uuid.NewString()
	if item.Status == "" {
		item.Status = StatusPending
	}
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*WorkItem, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *MemoryStore) List(_ context.Context, status *Status) ([]WorkItem, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	result := make([]WorkItem, 0, len(s.items))
	for _, item := range s.items {
		if status != nil && item.Status != *status {
			continue
		}
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) (*WorkItem, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = s.now()
	copied := *item
	return &copied, nil
}

func (s *MemoryStore) UpdateResult(_ context.Context, id string, status Status, procedureCode string, serviceRequestID string) (*WorkItem, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item.Status = status
	if procedureCode != "" {
		item.ProcedureCode = procedureCode
	}
	if serviceRequestID != "" {
		item.ServiceRequestID = serviceRequestID
	}
	item.UpdatedAt = s.now()
	copied := *item
	return &copied, nil
}
