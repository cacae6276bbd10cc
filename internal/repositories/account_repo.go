package repositories

import (
	"context"
	"fmt"
	"time"

	"vocabapp/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByIDAndVersion(ctx context.Context, id uuid.UUID, version int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	CountByEmailOrUsername(ctx context.Context, email, username string) (int, error)
	CreateWithUser(ctx context.Context, user *models.User, account *models.Account) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (int64, error)
	BumpVersion(ctx context.Context, id uuid.UUID) (int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) (int64, error)
}

type accountRepo struct {
	db Database
}

func NewAccountRepo(db Database) AccountRepository {
	return &accountRepo{db: db}
}

const accountColumns = `id, tenant_id, user_id, username, email, password_hash, version, is_active, last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &a.Username, &a.Email, &a.PasswordHash, &a.Version, &a.IsActive, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// GetByIDAndVersion only matches while the account is still at version.
func (r *accountRepo) GetByIDAndVersion(ctx context.Context, id uuid.UUID, version int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND version = $2`
	return scanAccount(r.db.QueryRow(ctx, query, id, version))
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(r.db.QueryRow(ctx, query, username))
}

func (r *accountRepo) CountByEmailOrUsername(ctx context.Context, email, username string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM accounts WHERE email = $1 OR username = $2`
	if err := r.db.QueryRow(ctx, query, email, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// CreateWithUser inserts the user and its login account in one transaction.
func (r *accountRepo) CreateWithUser(ctx context.Context, user *models.User, account *models.Account) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, tenant_id, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, user.ID, user.TenantID, user.Name, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", duplicate(err))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, tenant_id, user_id, username, email, password_hash, version, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, account.ID, account.TenantID, account.UserID, account.Username, account.Email, account.PasswordHash, account.Version, account.IsActive)
	if err != nil {
		return fmt.Errorf("insert account: %w", duplicate(err))
	}

	return tx.Commit(ctx)
}

func (r *accountRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdatePassword stores a new hash and bumps the version, which invalidates
// every refresh token issued so far. It returns the new version.
func (r *accountRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (int64, error) {
	query := `UPDATE accounts SET password_hash = $2, version = version + 1, updated_at = NOW() WHERE id = $1 RETURNING version`
	return r.returningVersion(ctx, query, id, passwordHash)
}

func (r *accountRepo) BumpVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `UPDATE accounts SET version = version + 1, updated_at = NOW() WHERE id = $1 RETURNING version`
	return r.returningVersion(ctx, query, id)
}

func (r *accountRepo) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `UPDATE accounts SET is_active = FALSE, version = version + 1, updated_at = NOW() WHERE id = $1 RETURNING version`
	return r.returningVersion(ctx, query, id)
}

func (r *accountRepo) returningVersion(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var version int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&version); err != nil {
		return 0, notFound(err)
	}
	return version, nil
}
