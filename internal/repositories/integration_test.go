package repositories_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vocabapp/internal/models"
	"vocabapp/internal/repositories"
	"vocabapp/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionRotation_Postgres runs the refresh compare-and-swap against a real
// database; it is skipped unless TEST_DATABASE_URL is set.
func TestSessionRotation_Postgres(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	defer db.Cleanup()
	ctx := context.Background()

	tenants := repositories.NewTenantRepo(db.Pool)
	accounts := repositories.NewAccountRepo(db.Pool)
	sessions := repositories.NewSessionRepo(db.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	suffix := uuid.NewString()[:8]
	tenant := &models.Tenant{ID: uuid.New(), Name: "Integration", Slug: "it-" + suffix, Status: models.TenantStatusActive, Plan: "free", IsActive: true}
	require.NoError(t, tenants.Create(ctx, tenant))

	user := &models.User{ID: uuid.New(), TenantID: tenant.ID, Name: "it", Role: models.RoleMember, CreatedAt: now, UpdatedAt: now}
	account := &models.Account{
		ID: uuid.New(), TenantID: tenant.ID, UserID: user.ID,
		Username: "it-" + suffix, Email: "it-" + suffix + "@example.com",
		PasswordHash: "x", Version: 1, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, accounts.CreateWithUser(ctx, user, account))

	session := &models.Session{
		ID: uuid.New(), AccountID: account.ID, UserID: user.ID, TenantID: tenant.ID,
		DeviceID: "d", RefreshTokenHash: "h0", IsActive: true,
		ExpiresAt: now.Add(time.Hour), LastAccessedAt: now, CreatedAt: now,
	}
	require.NoError(t, sessions.Create(ctx, session))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := sessions.RotateRefreshToken(ctx, repositories.RefreshRotation{
				SessionID: session.ID,
				OldHash:   "h0",
				NewHash:   uuid.NewString(),
				ExpiresAt: now.Add(2 * time.Hour),
				Now:       now,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, repositories.ErrStaleSession), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RefreshCount)
	assert.NotEqual(t, "h0", stored.RefreshTokenHash)

	revoked, err := sessions.DeactivateAllForAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, session.ID, revoked[0].ID)
	assert.True(t, errors.Is(sessions.DeactivateWithHash(ctx, session.ID, stored.RefreshTokenHash), repositories.ErrStaleSession))
}
