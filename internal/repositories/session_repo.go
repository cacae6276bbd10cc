package repositories

import (
	"context"
	"fmt"
	"time"

	"vocabapp/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RevokedSession identifies a session that was just deactivated, with the
// expiry its revocation marker has to outlive.
type RevokedSession struct {
	ID        uuid.UUID
	ExpiresAt time.Time
}

// RefreshRotation is the state written when a refresh token is redeemed.
type RefreshRotation struct {
	SessionID uuid.UUID
	OldHash   string
	NewHash   string
	ExpiresAt time.Time
	Now       time.Time
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]models.Session, error)
	RotateRefreshToken(ctx context.Context, rotation RefreshRotation) error
	DeactivateWithHash(ctx context.Context, id uuid.UUID, hash string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateAllForAccount(ctx context.Context, accountID uuid.UUID) ([]RevokedSession, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}

type sessionRepo struct {
	db Database
}

func NewSessionRepo(db Database) SessionRepository {
	return &sessionRepo{db: db}
}

const sessionColumns = `id, account_id, user_id, tenant_id, device_id, refresh_token_hash, is_active, expires_at, last_accessed_at, refresh_count, ip, user_agent, device_type, location, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(&s.ID, &s.AccountID, &s.UserID, &s.TenantID, &s.DeviceID, &s.RefreshTokenHash, &s.IsActive,
		&s.ExpiresAt, &s.LastAccessedAt, &s.RefreshCount,
		&s.Metadata.IP, &s.Metadata.UserAgent, &s.Metadata.DeviceType, &s.Metadata.Location,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, user_id, tenant_id, device_id, refresh_token_hash, is_active,
			expires_at, last_accessed_at, refresh_count, ip, user_agent, device_type, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`
	_, err := r.db.Exec(ctx, query, s.ID, s.AccountID, s.UserID, s.TenantID, s.DeviceID, s.RefreshTokenHash, s.IsActive,
		s.ExpiresAt, s.LastAccessedAt, s.RefreshCount,
		s.Metadata.IP, s.Metadata.UserAgent, s.Metadata.DeviceType, s.Metadata.Location, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *sessionRepo) ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_accessed_at DESC`
	rows, err := r.db.Query(ctx, query, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// RotateRefreshToken swaps the stored refresh hash only if it still equals
// OldHash and the session is still valid. Of several concurrent redemptions of
// the same token exactly one matches; the rest get ErrStaleSession.
func (r *sessionRepo) RotateRefreshToken(ctx context.Context, rot RefreshRotation) error {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $3,
			expires_at = $4,
			last_accessed_at = $5,
			refresh_count = refresh_count + 1,
			updated_at = $5
		WHERE id = $1 AND refresh_token_hash = $2 AND is_active = TRUE AND expires_at > $5
	`
	tag, err := r.db.Exec(ctx, query, rot.SessionID, rot.OldHash, rot.NewHash, rot.ExpiresAt, rot.Now)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

// DeactivateWithHash ends the session only while hash is its current refresh hash.
func (r *sessionRepo) DeactivateWithHash(ctx context.Context, id uuid.UUID, hash string) error {
	query := `
		UPDATE sessions SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2 AND is_active = TRUE
	`
	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *sessionRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE sessions SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *sessionRepo) DeactivateAllForAccount(ctx context.Context, accountID uuid.UUID) ([]RevokedSession, error) {
	query := `
		UPDATE sessions SET is_active = FALSE, updated_at = NOW()
		WHERE account_id = $1 AND is_active = TRUE
		RETURNING id, expires_at
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("deactivate account sessions: %w", err)
	}
	defer rows.Close()

	var revoked []RevokedSession
	for rows.Next() {
		var rs RevokedSession
		if err := rows.Scan(&rs.ID, &rs.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan revoked session: %w", err)
		}
		revoked = append(revoked, rs)
	}
	return revoked, rows.Err()
}

func (r *sessionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE sessions SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepo) PurgeExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepo) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
