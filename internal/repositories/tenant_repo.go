package repositories

import (
	"context"
	"fmt"

	"vocabapp/internal/models"

	"github.com/google/uuid"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, isActive bool) error
}

type tenantRepo struct {
	db Database
}

func NewTenantRepo(db Database) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, status, plan, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.Plan, tenant.IsActive)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT id, name, slug, status, plan, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT id, name, slug, status, plan, is_active, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`
	return r.scanOne(ctx, query, slug)
}

func (r *tenantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, isActive bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET status = $2, is_active = $3, updated_at = NOW() WHERE id = $1`, id, status, isActive)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepo) scanOne(ctx context.Context, query string, arg interface{}) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.QueryRow(ctx, query, arg).Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.Status, &tenant.Plan, &tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return tenant, nil
}
