package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vocabapp/internal/models"
	"vocabapp/internal/repositories"

	"github.com/google/uuid"
)

// Store is an in-memory stand-in for the Postgres repositories. It implements
// every repository interface and applies the same conditional updates as the
// SQL, so concurrency tests can run without a database.
type Store struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]models.Tenant
	users    map[uuid.UUID]models.User
	accounts map[uuid.UUID]models.Account
	sessions map[uuid.UUID]models.Session

	// FailSessionCreate makes the next Sessions().Create call fail with it.
	FailSessionCreate error
}

func NewStore() *Store {
	return &Store{
		tenants:  make(map[uuid.UUID]models.Tenant),
		users:    make(map[uuid.UUID]models.User),
		accounts: make(map[uuid.UUID]models.Account),
		sessions: make(map[uuid.UUID]models.Session),
	}
}

func (s *Store) Tenants() repositories.TenantRepository   { return tenantStore{s} }
func (s *Store) Users() repositories.UserRepository       { return userStore{s} }
func (s *Store) Accounts() repositories.AccountRepository { return accountStore{s} }
func (s *Store) Sessions() repositories.SessionRepository { return sessionStore{s} }

func (s *Store) PutTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *Store) PutSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Session returns a copy of the stored row.
func (s *Store) Session(id uuid.UUID) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Account(id uuid.UUID) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Store) Tenant(id uuid.UUID) (models.Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	return t, ok
}

type tenantStore struct{ s *Store }

func (r tenantStore) Create(_ context.Context, t *models.Tenant) error {
	r.s.PutTenant(*t)
	return nil
}

func (r tenantStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := r.s.Tenant(id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func (r tenantStore) GetBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r tenantStore) UpdateStatus(_ context.Context, id uuid.UUID, status string, isActive bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	t.IsActive = isActive
	r.s.tenants[id] = t
	return nil
}

type userStore struct{ s *Store }

func (r userStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

type accountStore struct{ s *Store }

func (r accountStore) find(match func(models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r accountStore) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.ID == id })
}

func (r accountStore) GetByIDAndVersion(_ context.Context, id uuid.UUID, version int64) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.ID == id && a.Version == version })
}

func (r accountStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Email == email })
}

func (r accountStore) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Username == username })
}

func (r accountStore) CountByEmailOrUsername(_ context.Context, email, username string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.accounts {
		if a.Email == email || a.Username == username {
			n++
		}
	}
	return n, nil
}

func (r accountStore) CreateWithUser(_ context.Context, user *models.User, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return fmt.Errorf("insert account: %w", repositories.ErrDuplicate)
		}
	}
	r.s.users[user.ID] = *user
	r.s.accounts[account.ID] = *account
	return nil
}

func (r accountStore) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.LastLoginAt = &at
	r.s.accounts[id] = a
	return nil
}

func (r accountStore) update(id uuid.UUID, fn func(*models.Account)) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	fn(&a)
	a.Version++
	r.s.accounts[id] = a
	return a.Version, nil
}

func (r accountStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) (int64, error) {
	return r.update(id, func(a *models.Account) { a.PasswordHash = passwordHash })
}

func (r accountStore) BumpVersion(_ context.Context, id uuid.UUID) (int64, error) {
	return r.update(id, func(*models.Account) {})
}

func (r accountStore) Deactivate(_ context.Context, id uuid.UUID) (int64, error) {
	return r.update(id, func(a *models.Account) { a.IsActive = false })
}

type sessionStore struct{ s *Store }

func (r sessionStore) Create(_ context.Context, sess *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailSessionCreate; err != nil {
		r.s.FailSessionCreate = nil
		return err
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

func (r sessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	sess, ok := r.s.Session(id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &sess, nil
}

func (r sessionStore) ListActiveByAccount(_ context.Context, accountID uuid.UUID, now time.Time) ([]models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Session
	for _, sess := range r.s.sessions {
		if sess.AccountID == accountID && sess.IsValid(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAccessedAt.After(out[j].LastAccessedAt) })
	return out, nil
}

func (r sessionStore) RotateRefreshToken(_ context.Context, rot repositories.RefreshRotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[rot.SessionID]
	if !ok || sess.RefreshTokenHash != rot.OldHash || !sess.IsValid(rot.Now) {
		return repositories.ErrStaleSession
	}
	sess.RefreshTokenHash = rot.NewHash
	sess.ExpiresAt = rot.ExpiresAt
	sess.LastAccessedAt = rot.Now
	sess.RefreshCount++
	sess.UpdatedAt = rot.Now
	r.s.sessions[sess.ID] = sess
	return nil
}

func (r sessionStore) DeactivateWithHash(_ context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.IsActive || sess.RefreshTokenHash != hash {
		return repositories.ErrStaleSession
	}
	sess.IsActive = false
	r.s.sessions[id] = sess
	return nil
}

func (r sessionStore) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.IsActive {
		return repositories.ErrStaleSession
	}
	sess.IsActive = false
	r.s.sessions[id] = sess
	return nil
}

func (r sessionStore) DeactivateAllForAccount(_ context.Context, accountID uuid.UUID) ([]repositories.RevokedSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []repositories.RevokedSession
	for id, sess := range r.s.sessions {
		if sess.AccountID == accountID && sess.IsActive {
			sess.IsActive = false
			r.s.sessions[id] = sess
			out = append(out, repositories.RevokedSession{ID: id, ExpiresAt: sess.ExpiresAt})
		}
	}
	return out, nil
}

func (r sessionStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.IsActive && !sess.ExpiresAt.After(now) {
			sess.IsActive = false
			r.s.sessions[id] = sess
			n++
		}
	}
	return n, nil
}

func (r sessionStore) PurgeExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r sessionStore) Ping(context.Context) error { return nil }
