package testhelpers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"vocabapp/internal/caching"
	"vocabapp/internal/models"
	"vocabapp/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the plaintext password of every seeded account.
const DefaultPassword = "correct-horse-battery"

// TestDB holds the database connection for integration tests.
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB migrates and connects to TEST_DATABASE_URL. It skips the test when it is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := database.Migrate(connString, database.DirectionUp); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
}

// Clock is a settable time source shared by the code under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewRevocationCache starts a miniredis server and returns a cache on top of it.
// The server is closed with the test.
func NewRevocationCache(t *testing.T, now func() time.Time) (caching.RevocationCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return caching.NewRedisRevocationCache(client, 200*time.Millisecond, now), server
}

// Fixture is one tenant with one member account.
type Fixture struct {
	Tenant  models.Tenant
	User    models.User
	Account models.Account
}

// SeedTenant stores an active tenant with the given slug.
func SeedTenant(s *Store, slug string) models.Tenant {
	now := time.Now().UTC()
	tenant := models.Tenant{
		ID:        uuid.New(),
		Name:      slug,
		Slug:      slug,
		Status:    models.TenantStatusActive,
		Plan:      "free",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.PutTenant(tenant)
	return tenant
}

// SeedAccount stores a user and an active account with DefaultPassword in tenant.
func SeedAccount(t *testing.T, s *Store, tenant models.Tenant, username, role string) Fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	user := models.User{ID: uuid.New(), TenantID: tenant.ID, Name: username, Role: role, CreatedAt: now, UpdatedAt: now}
	account := models.Account{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		UserID:       user.ID,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Version:      1,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.PutUser(user)
	s.PutAccount(account)
	return Fixture{Tenant: tenant, User: user, Account: account}
}
