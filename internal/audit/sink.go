package audit

import (
	"context"
	"sync"

	"reconciliation-service/internal/domain"
)

// Sink durably stores audit entries in append order.
type Sink interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}

// MemorySink keeps entries in memory. The run usecase uses it for
// dry runs and tests use it to inspect the trail.
type MemorySink struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of the trail in append order.
func (s *MemorySink) Entries() []*domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
