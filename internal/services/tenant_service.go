package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vocabapp/internal/common"
	"vocabapp/internal/models"
	"vocabapp/internal/repositories"

	"github.com/google/uuid"
)

// TenantService backs the operator commands that provision and suspend tenants.
type TenantService interface {
	Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	SetStatus(ctx context.Context, slug, status string) (*models.Tenant, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
}

func NewTenantService(tenantRepo repositories.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo}
}

type CreateTenantRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

func (s *tenantService) Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	if req.Name == "" || req.Slug == "" {
		return nil, fmt.Errorf("%w: name and slug are required", ErrValidation)
	}
	if strings.TrimSpace(req.Slug) != req.Slug || !common.IsValidUsername(req.Slug) {
		return nil, fmt.Errorf("%w: slug must be 3-32 lowercase letters, digits, '-' or '_'", ErrValidation)
	}

	existing, err := s.tenantRepo.GetBySlug(ctx, req.Slug)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: tenant %q", ErrConflict, req.Slug)
	}

	plan := req.Plan
	if plan == "" {
		plan = "free"
	}
	tenant := &models.Tenant{
		ID:       uuid.New(),
		Name:     req.Name,
		Slug:     req.Slug,
		Status:   models.TenantStatusActive,
		Plan:     plan,
		IsActive: true,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", ErrValidation)
	}
	return s.tenantRepo.GetBySlug(ctx, slug)
}

// SetStatus moves a tenant between active, suspended and inactive. Members of
// a tenant that is not active can neither log in nor refresh.
func (s *tenantService) SetStatus(ctx context.Context, slug, status string) (*models.Tenant, error) {
	switch status {
	case models.TenantStatusActive, models.TenantStatusSuspended, models.TenantStatusInactive:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	tenant, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	isActive := status != models.TenantStatusInactive
	if err := s.tenantRepo.UpdateStatus(ctx, tenant.ID, status, isActive); err != nil {
		return nil, err
	}
	tenant.Status = status
	tenant.IsActive = isActive
	return tenant, nil
}
