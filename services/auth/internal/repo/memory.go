package repo

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/models"
)

// MemoryStore keeps refresh tokens in process memory. Useful for a single
// replica and for tests; tokens do not survive a restart.
type MemoryStore struct {
	mu          sync.Mutex
	policy      SessionPolicy
	now         func() time.Time
	byHash      map[string]models.RefreshToken
	byPrincipal map[string]map[string]struct{}
}

func NewMemoryStore(policy SessionPolicy) *MemoryStore {
	return &MemoryStore{
		policy:      policy,
		now:         time.Now,
		byHash:      make(map[string]models.RefreshToken),
		byPrincipal: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) AddRefreshToken(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy != PolicyMulti {
		s.dropPrincipalLocked(rec.Principal.ID)
	}
	s.putLocked(rec.model(s.now()))
	return nil
}

func (s *MemoryStore) VerifyRefreshToken(ctx context.Context, token string) (tokens.Principal, error) {
	if err := ctx.Err(); err != nil {
		return tokens.Principal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byHash[Sha256Hex(token)]
	if !ok {
		return tokens.Principal{}, ErrRefreshTokenNotFound
	}
	if !m.ExpiresAt.After(s.now()) {
		s.deleteLocked(m.TokenHash)
		return tokens.Principal{}, ErrRefreshTokenExpired
	}
	return principalOf(m), nil
}

func (s *MemoryStore) RevokeRefreshToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(Sha256Hex(token))
	return nil
}

func (s *MemoryStore) RotateRefreshToken(ctx context.Context, oldToken string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byHash[Sha256Hex(oldToken)]
	if !ok {
		return ErrRefreshTokenNotFound
	}
	if !old.ExpiresAt.After(s.now()) {
		s.deleteLocked(old.TokenHash)
		return ErrRefreshTokenExpired
	}
	s.deleteLocked(old.TokenHash)
	s.putLocked(rec.model(s.now()))
	return nil
}

func (s *MemoryStore) RevokeAll(ctx context.Context, principalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropPrincipalLocked(principalID)
	return nil
}

// Len reports the number of stored tokens, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

func (s *MemoryStore) putLocked(m models.RefreshToken) {
	s.byHash[m.TokenHash] = m
	set, ok := s.byPrincipal[m.PrincipalID]
	if !ok {
		set = make(map[string]struct{})
		s.byPrincipal[m.PrincipalID] = set
	}
	set[m.TokenHash] = struct{}{}
}

func (s *MemoryStore) deleteLocked(hash string) {
	m, ok := s.byHash[hash]
	if !ok {
		return
	}
	delete(s.byHash, hash)
	if set, ok := s.byPrincipal[m.PrincipalID]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(s.byPrincipal, m.PrincipalID)
		}
	}
}

func (s *MemoryStore) dropPrincipalLocked(principalID string) {
	for hash := range s.byPrincipal[principalID] {
		delete(s.byHash, hash)
	}
	delete(s.byPrincipal, principalID)
}
