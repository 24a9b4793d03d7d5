package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// MemoryStore keeps codes in process memory. Codes are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	opts    Options
	now     func() time.Time
}

// NewMemoryStore builds an in-process code store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

// Issue generates a fresh code for the phone, replacing any outstanding one.
func (s *MemoryStore) Issue(_ context.Context, phone string) (string, time.Time, error) {
	code, err := GenerateNumericCode(s.opts.CodeLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	expiresAt := s.now().Add(s.opts.TTL)

	s.mu.Lock()
	s.entries[phone] = &memoryEntry{code: code, expiresAt: expiresAt}
	s.mu.Unlock()

	return code, expiresAt, nil
}

// Consume checks the code and removes it on success.
func (s *MemoryStore) Consume(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[phone]
	if !ok {
		return ErrCodeInvalid
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, phone)
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) != 1 {
		entry.attempts++
		if entry.attempts >= s.opts.MaxAttempts {
			delete(s.entries, phone)
		}
		return ErrCodeInvalid
	}
	delete(s.entries, phone)
	return nil
}

// Sweep drops expired codes and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, phone)
			removed++
		}
	}
	return removed
}

// Len reports the number of outstanding codes.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
