package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"vocabapp/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TenantRepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	tenants  TenantRepository
	users    UserRepository
	tenantID uuid.UUID
	context  context.Context
}

func (suite *TenantRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.tenants = NewTenantRepo(mock)
	suite.users = NewUserRepo(mock)
	suite.tenantID = uuid.New()
	suite.context = context.Background()
}

func (suite *TenantRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestTenantRepoTestSuite(t *testing.T) {
	suite.Run(t, new(TenantRepoTestSuite))
}

func (suite *TenantRepoTestSuite) TestCreate() {
	tenant := &models.Tenant{ID: suite.tenantID, Name: "Acme", Slug: "acme", Status: models.TenantStatusActive, Plan: "free", IsActive: true}

	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenants`)).
		WithArgs(tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.Plan, tenant.IsActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.tenants.Create(suite.context, tenant))
}

func (suite *TenantRepoTestSuite) TestCreate_DuplicateSlug() {
	tenant := &models.Tenant{ID: suite.tenantID, Name: "Acme", Slug: "acme", Status: models.TenantStatusActive, Plan: "free", IsActive: true}

	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenants`)).
		WithArgs(tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.Plan, tenant.IsActive).
		WillReturnError(errors.New("duplicate key value violates unique constraint \"tenants_slug_key\""))

	err := suite.tenants.Create(suite.context, tenant)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "create tenant")
}

func (suite *TenantRepoTestSuite) TestGetBySlug_Suspended() {
	now := time.Now().UTC()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`WHERE slug = $1`)).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "status", "plan", "is_active", "created_at", "updated_at"}).
			AddRow(suite.tenantID, "Acme", "acme", models.TenantStatusSuspended, "pro", true, now, now))

	tenant, err := suite.tenants.GetBySlug(suite.context, "acme")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.tenantID, tenant.ID)
	assert.False(suite.T(), tenant.CanAccessTenant())
}

func (suite *TenantRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs(suite.tenantID).
		WillReturnError(pgx.ErrNoRows)

	tenant, err := suite.tenants.GetByID(suite.context, suite.tenantID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), tenant)
}

func (suite *TenantRepoTestSuite) TestUserGetByID_ScopedToTenant() {
	userID := uuid.New()
	otherTenant := uuid.New()
	now := time.Now().UTC()

	suite.mock.ExpectQuery(regexp.QuoteMeta(`WHERE tenant_id = $1 AND id = $2`)).
		WithArgs(suite.tenantID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "role", "created_at", "updated_at"}).
			AddRow(userID, suite.tenantID, "Jane", models.RoleAdmin, now, now))
	suite.mock.ExpectQuery(regexp.QuoteMeta(`WHERE tenant_id = $1 AND id = $2`)).
		WithArgs(otherTenant, userID).
		WillReturnError(pgx.ErrNoRows)

	user, err := suite.users.GetByID(suite.context, suite.tenantID, userID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RoleAdmin, user.Role)

	_, err = suite.users.GetByID(suite.context, otherTenant, userID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *TenantRepoTestSuite) TestUpdateStatus() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE tenants SET status = $2, is_active = $3`)).
		WithArgs(suite.tenantID, models.TenantStatusSuspended, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE tenants SET status = $2, is_active = $3`)).
		WithArgs(suite.tenantID, models.TenantStatusActive, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(suite.T(), suite.tenants.UpdateStatus(suite.context, suite.tenantID, models.TenantStatusSuspended, true))
	assert.ErrorIs(suite.T(), suite.tenants.UpdateStatus(suite.context, suite.tenantID, models.TenantStatusActive, true), ErrNotFound)
}
