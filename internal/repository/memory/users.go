package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
)

type userStore struct {
	mu      sync.Mutex
	seq     uint64
	byID    map[uint64]model.User
	byEmail map[string]uint64
	tokens  *tokenStore
	now     func() time.Time
}

func newUserStore(now func() time.Time) *userStore {
	return &userStore{
		byID:    map[uint64]model.User{},
		byEmail: map[string]uint64{},
		tokens:  &tokenStore{rows: map[string]model.RefreshToken{}},
		now:     now,
	}
}

func (s *userStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return repository.ErrEmailExists
	}
	s.seq++
	u.ID = s.seq
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *userStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *userStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name, cur.PasswordHash = u.Name, u.PasswordHash
	cur.IsActive, cur.IsStaff, cur.IsSuperuser = u.IsActive, u.IsStaff, u.IsSuperuser
	cur.UpdatedAt = s.now()
	s.byID[u.ID] = cur
	*u = cur
	return nil
}

type tokenStore struct {
	mu   sync.Mutex
	seq  uint64
	rows map[string]model.RefreshToken // keyed by hash
}

func (t *tokenStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.rows[tokenHash] = model.RefreshToken{ID: t.seq, UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (t *tokenStore) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[tokenHash]
	if !ok || row.RevokedAt != nil || time.Now().UTC().After(row.ExpiresAt) {
		return 0, repository.ErrNotFound
	}
	return row.UserID, nil
}

func (t *tokenStore) RevokeByHash(_ context.Context, userID uint64, tokenHash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[tokenHash]
	if ok && row.UserID == userID && row.RevokedAt == nil {
		now := time.Now().UTC()
		row.RevokedAt = &now
		t.rows[tokenHash] = row
	}
	return nil
}

func (t *tokenStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	for h, row := range t.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			t.rows[h] = row
		}
	}
	return nil
}
