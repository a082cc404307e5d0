package main

import (
	"context"
	"sync"
	"time"

	"github.com/fancy-planties/verification-service/models"
)

// MemoryCodeStore is a mutex-guarded CodeStore used by the tests and by
// local development without a database. Consume holds the lock for the
// whole match-and-delete, which gives the same exactly-once behaviour the
// conditional DELETE gives on MySQL.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[int]*models.VerificationCode
	next  int
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[int]*models.VerificationCode)}
}

func (s *MemoryCodeStore) Replace(ctx context.Context, code *models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	cp := *code
	cp.ID = s.next
	s.codes[cp.UserID] = &cp
	return nil
}

func (s *MemoryCodeStore) Consume(ctx context.Context, userID int, code string, now time.Time, maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[userID]
	if !ok {
		return false, nil
	}
	if vc.Code != code || vc.IsExpired(now) || vc.AttemptsExhausted(maxAttempts) {
		return false, nil
	}
	delete(s.codes, userID)
	return true, nil
}

func (s *MemoryCodeStore) GetByUserID(ctx context.Context, userID int) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[userID]
	if !ok {
		return nil, nil
	}
	cp := *vc
	return &cp, nil
}

func (s *MemoryCodeStore) IncrementAttempts(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vc, ok := s.codes[userID]; ok {
		vc.AttemptsUsed++
	}
	return nil
}

func (s *MemoryCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for userID, vc := range s.codes {
		if vc.IsExpired(now) {
			delete(s.codes, userID)
			removed++
		}
	}
	return removed, nil
}

// MemoryUserStore is the in-memory account collaborator.
type MemoryUserStore struct {
	mu      sync.Mutex
	users   map[int]*models.User
	byEmail map[string]int
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[int]*models.User),
		byEmail: make(map[string]int),
	}
}

// Put seeds an account. Registration is outside this service, so the
// in-memory store just takes whatever the caller hands it.
func (s *MemoryUserStore) Put(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) MarkVerified(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Verified = true
	}
	return nil
}
