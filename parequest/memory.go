package parequest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var _ Store = &MemoryStore{}

// MemoryStore is the in-process Store used when no database is configured.
// The id counter is derived from the stored records, so allocation stays
// correct across seeding and deletion; the store mutex serializes it.
type MemoryStore struct {
	mux      sync.RWMutex
	requests map[string]*Request
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: map[string]*Request{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, request *Request) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	maxSuffix := 0
	for id := range s.requests {
		if suffix, ok := numericSuffix(id); ok && suffix > maxSuffix {
			maxSuffix = suffix
		}
	}
	request.ID = fmt.Sprintf("PA-%d", maxSuffix+1)
	if request.Status == "" {
		request.Status = StatusDraft
	}
	request.CreatedAt = s.now()
	request.UpdatedAt = request.CreatedAt
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func numericSuffix(id string) (int, bool) {
	raw, found := strings.CutPrefix(id, "PA-")
	if !found {
		return 0, false
	}
	suffix, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return suffix, true
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *request
	return &copied, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Request, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	result := make([]Request, 0, len(s.requests))
	for _, request := range s.requests {
		result = append(result, *request)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) ApplyAnalysis(_ context.Context, id string, result AnalysisResult) (*Request, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	request.ClinicalSummary = result.ClinicalSummary
	request.Confidence = result.Confidence
	request.Criteria = result.Criteria
	request.Status = StatusReady
	request.ReadyAt = &now
	request.UpdatedAt = now
	copied := *request
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fields UpdateFields) (*Request, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if fields.Patient != nil {
		request.Patient = *fields.Patient
	}
	if fields.DiagnosisCode != nil {
		request.DiagnosisCode = *fields.DiagnosisCode
	}
	if fields.DiagnosisName != nil {
		request.DiagnosisName = *fields.DiagnosisName
	}
	if fields.ProviderID != nil {
		request.ProviderID = *fields.ProviderID
	}
	if fields.Status != nil {
		request.Status = *fields.Status
	}
	if fields.ClinicalSummary != nil {
		request.ClinicalSummary = *fields.ClinicalSummary
	}
	request.UpdatedAt = s.now()
	copied := *request
	return &copied, nil
}

func (s *MemoryStore) Submit(_ context.Context, id string, addReviewTimeSeconds int) (*Request, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	request.Status = StatusWaitingForInsurance
	request.SubmittedAt = &now
	request.ReviewTimeSeconds += addReviewTimeSeconds
	request.UpdatedAt = now
	copied := *request
	return &copied, nil
}

func (s *MemoryStore) AddReviewTime(_ context.Context, id string, seconds int) (*Request, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	request.ReviewTimeSeconds += seconds
	request.UpdatedAt = s.now()
	copied := *request
	return &copied, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	_, ok := s.requests[id]
	delete(s.requests, id)
	return ok, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	stats := &Stats{}
	for _, request := range s.requests {
		stats.Total++
		switch request.Status {
		case StatusDraft:
			stats.Draft++
		case StatusReady:
			stats.Ready++
		case StatusWaitingForInsurance:
			stats.WaitingForInsurance++
		case StatusSubmitted:
			stats.Submitted++
		case StatusApproved:
			stats.Approved++
		case StatusDenied:
			stats.Denied++
		}
	}
	return stats, nil
}

func (s *MemoryStore) RecentActivity(_ context.Context, limit int) ([]Activity, error) {
	s.mux.RLock()
	requests := make([]Request, 0, len(s.requests))
	for _, request := range s.requests {
		requests = append(requests, *request)
	}
	s.mux.RUnlock()
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].UpdatedAt.After(requests[j].UpdatedAt)
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	activity := make([]Activity, 0, len(requests))
	for _, request := range requests {
		action, label := activityForStatus(request.Status)
		activity = append(activity, Activity{
			RequestID:   request.ID,
			PatientName: request.Patient.Name,
			Action:      action,
			Label:       label,
			At:          request.UpdatedAt,
		})
	}
	return activity, nil
}
