package jobs

import (
	"context"
	"testing"
	"time"

	"vocabapp/internal/metrics"
	"vocabapp/internal/models"
	"vocabapp/testhelpers"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SessionSweeperTestSuite struct {
	suite.Suite
	clock   *testhelpers.Clock
	store   *testhelpers.Store
	reg     *prometheus.Registry
	sweeper *SessionSweeper
}

func (suite *SessionSweeperTestSuite) SetupTest() {
	suite.clock = testhelpers.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	suite.store = testhelpers.NewStore()
	suite.reg = prometheus.NewRegistry()
	suite.sweeper = NewSessionSweeper(suite.store.Sessions(), metrics.NewAuthMetrics(suite.reg), nil, 7*24*time.Hour, suite.clock.Now)
}

func TestSessionSweeperTestSuite(t *testing.T) {
	suite.Run(t, new(SessionSweeperTestSuite))
}

func (suite *SessionSweeperTestSuite) putSession(expiresAt time.Time, active bool) uuid.UUID {
	id := uuid.New()
	suite.store.PutSession(models.Session{
		ID:               id,
		AccountID:        uuid.New(),
		UserID:           uuid.New(),
		TenantID:         uuid.New(),
		RefreshTokenHash: "hash",
		IsActive:         active,
		ExpiresAt:        expiresAt,
		CreatedAt:        expiresAt.Add(-24 * time.Hour),
		LastAccessedAt:   expiresAt.Add(-time.Hour),
	})
	return id
}

func (suite *SessionSweeperTestSuite) swept(action string) float64 {
	families, err := suite.reg.Gather()
	require.NoError(suite.T(), err)
	for _, mf := range families {
		if mf.GetName() != "vocabapp_sessions_swept_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "action" && l.GetValue() == action {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func (suite *SessionSweeperTestSuite) TestSweep_DeactivatesExpiredAndPurgesOld() {
	now := suite.clock.Now()
	live := suite.putSession(now.Add(time.Hour), true)
	justExpired := suite.putSession(now, true)
	longGone := suite.putSession(now.Add(-30*24*time.Hour), false)

	result, err := suite.sweeper.Sweep(context.Background())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), result.Deactivated)
	assert.Equal(suite.T(), int64(1), result.Purged)
	assert.Equal(suite.T(), now, result.SweptAt)

	s, ok := suite.store.Session(live)
	require.True(suite.T(), ok)
	assert.True(suite.T(), s.IsActive)

	s, ok = suite.store.Session(justExpired)
	require.True(suite.T(), ok)
	assert.False(suite.T(), s.IsActive)

	_, ok = suite.store.Session(longGone)
	assert.False(suite.T(), ok)

	assert.Equal(suite.T(), float64(1), suite.swept("deactivated"))
	assert.Equal(suite.T(), float64(1), suite.swept("purged"))
}

func (suite *SessionSweeperTestSuite) TestSweep_KeepsRowsInsideRetention() {
	now := suite.clock.Now()
	recent := suite.putSession(now.Add(-24*time.Hour), true)

	result, err := suite.sweeper.Sweep(context.Background())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), result.Deactivated)
	assert.Zero(suite.T(), result.Purged)

	_, ok := suite.store.Session(recent)
	assert.True(suite.T(), ok)

	suite.clock.Advance(7 * 24 * time.Hour)
	result, err = suite.sweeper.Sweep(context.Background())
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), result.Deactivated)
	assert.Equal(suite.T(), int64(1), result.Purged)
}

func (suite *SessionSweeperTestSuite) TestSweep_ZeroRetentionNeverPurges() {
	sweeper := NewSessionSweeper(suite.store.Sessions(), nil, nil, 0, suite.clock.Now)
	old := suite.putSession(suite.clock.Now().Add(-365*24*time.Hour), false)

	require.NoError(suite.T(), sweeper.ScheduledSweep(context.Background()))
	_, ok := suite.store.Session(old)
	assert.True(suite.T(), ok)
}
