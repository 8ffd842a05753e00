package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// PendingRegistrationStore drops entries lazily once their ttl is over.
type PendingRegistrationStore struct {
	mu      sync.Mutex
	byEmail map[string]pendingEntry
}

type pendingEntry struct {
	p       domain.PendingRegistration
	evictAt time.Time
}

func NewPendingRegistrationStore() *PendingRegistrationStore {
	return &PendingRegistrationStore{byEmail: make(map[string]pendingEntry)}
}

func (s *PendingRegistrationStore) Put(ctx context.Context, p domain.PendingRegistration, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Email = domain.NormalizeEmail(p.Email)
	s.byEmail[p.Email] = pendingEntry{p: p, evictAt: time.Now().Add(ttl)}
	return nil
}

func (s *PendingRegistrationStore) Get(ctx context.Context, email string) (domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(domain.NormalizeEmail(email))
	if !ok {
		return domain.PendingRegistration{}, domain.ErrOTPNotFound()
	}
	return e.p, nil
}

func (s *PendingRegistrationStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byEmail, domain.NormalizeEmail(email))
	return nil
}

func (s *PendingRegistrationStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	e, ok := s.lookup(email)
	if !ok {
		return 0, domain.ErrOTPNotFound()
	}
	e.p.Attempts++
	s.byEmail[email] = e
	return e.p.Attempts, nil
}

// lookup must be called with mu held.
func (s *PendingRegistrationStore) lookup(email string) (pendingEntry, bool) {
	e, ok := s.byEmail[email]
	if !ok {
		return pendingEntry{}, false
	}
	if time.Now().After(e.evictAt) {
		delete(s.byEmail, email)
		return pendingEntry{}, false
	}
	return e, true
}
