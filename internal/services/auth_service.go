package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vocabapp/internal/caching"
	"vocabapp/internal/common"
	"vocabapp/internal/metrics"
	"vocabapp/internal/models"
	"vocabapp/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPasswordLength = 8
	// bcrypt only looks at the first 72 bytes and refuses longer input.
	maxPasswordLength = 72
)

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLength)
	}
	return nil
}

// AuthService runs the session lifecycle: login, single-use refresh rotation,
// logout and forced revocation.
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*models.UserProfile, error)
	Login(ctx context.Context, req *LoginRequest, device models.DeviceInfo, origin string) (*models.LoginResult, error)
	Refresh(ctx context.Context, refreshToken, origin string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error

	// Authenticate resolves an access token into the caller's identity.
	Authenticate(ctx context.Context, accessToken string) (*common.AuthContext, error)

	ListSessions(ctx context.Context, account *models.Account) ([]models.Session, error)
	RevokeSession(ctx context.Context, account *models.Account, sessionID uuid.UUID) error
	LogoutAll(ctx context.Context, account *models.Account) error
	ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) error
	DisableAccount(ctx context.Context, admin *models.User, accountID uuid.UUID) error
}

type RegisterRequest struct {
	TenantSlug string `json:"tenantSlug"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

// AuthDependencies wires the stores and collaborators of the auth service.
type AuthDependencies struct {
	Accounts    repositories.AccountRepository
	Users       repositories.UserRepository
	Tenants     repositories.TenantRepository
	Sessions    repositories.SessionRepository
	Revocations caching.RevocationCache
	Tokens      TokenService
	Hasher      *Hasher
	Metrics     *metrics.AuthMetrics
	Logger      *zap.Logger
	Now         func() time.Time
}

type authService struct {
	accounts    repositories.AccountRepository
	users       repositories.UserRepository
	tenants     repositories.TenantRepository
	sessions    repositories.SessionRepository
	revocations caching.RevocationCache
	tokens      TokenService
	hasher      *Hasher
	metrics     *metrics.AuthMetrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(deps AuthDependencies) AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &authService{
		accounts:    deps.Accounts,
		users:       deps.Users,
		tenants:     deps.Tenants,
		sessions:    deps.Sessions,
		revocations: deps.Revocations,
		tokens:      deps.Tokens,
		hasher:      deps.Hasher,
		metrics:     deps.Metrics,
		logger:      logger.Named("auth"),
		now:         now,
	}
}

func (s *authService) observe(operation string, started time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case IsRejection(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.Observe(operation, outcome, started)
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (_ *models.UserProfile, err error) {
	defer func(started time.Time) { s.observe("register", started, err) }(time.Now())

	username := common.NormalizeIdentifier(req.Username)
	email := common.NormalizeIdentifier(req.Email)
	name := strings.TrimSpace(req.Name)

	if err := common.ValidateRequiredString(name, "name"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := common.ValidateUsername(username, "username"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := common.ValidateEmail(email, "email"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.GetBySlug(ctx, strings.TrimSpace(req.TenantSlug))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown tenant", ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.CanAccessTenant() {
		return nil, ErrAccessDenied
	}

	count, err := s.accounts.CountByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: username or email is taken", ErrConflict)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{ID: uuid.New(), TenantID: tenant.ID, Name: name, Role: models.RoleMember}
	account := &models.Account{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		UserID:       user.ID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Version:      1,
		IsActive:     true,
	}
	if err := s.accounts.CreateWithUser(ctx, user, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email is taken", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("account registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("account_id", account.ID.String()))
	return &models.UserProfile{ID: user.ID, Name: user.Name}, nil
}

func (s *authService) Login(ctx context.Context, req *LoginRequest, device models.DeviceInfo, origin string) (_ *models.LoginResult, err error) {
	defer func(started time.Time) { s.observe("login", started, err) }(time.Now())

	account, err := s.lookupAccount(ctx, common.NormalizeIdentifier(req.EmailOrUsername))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.hasher.CompareDummy(req.Password)
		}
		return nil, err
	}
	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		s.logger.Info("login rejected", zap.String("reason", "password"), zap.String("account_id", account.ID.String()))
		return nil, ErrInvalidCredentials
	}

	tenant, err := s.accessibleTenant(ctx, account.TenantID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, tenant.ID, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	sessionID := uuid.New()
	pair, refreshClaims, err := s.issuePair(account, tenant, s.tokens.Audience(origin), sessionID)
	if err != nil {
		return nil, err
	}

	deviceID := DeviceID(device.UserAgent, device.IP)
	session := &models.Session{
		ID:               sessionID,
		AccountID:        account.ID,
		UserID:           user.ID,
		TenantID:         tenant.ID,
		DeviceID:         deviceID,
		RefreshTokenHash: HashToken(pair.RefreshToken),
		IsActive:         true,
		ExpiresAt:        refreshClaims.ExpiresAt.Time,
		LastAccessedAt:   now,
		Metadata: models.SessionMetadata{
			IP:         device.IP,
			UserAgent:  device.UserAgent,
			DeviceType: device.DeviceType,
			Location:   device.Location,
		},
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("account_id", account.ID.String()), zap.Error(err))
	}

	s.logger.Info("login succeeded",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("session_id", sessionID.String()))

	return &models.LoginResult{
		Tokens:    *pair,
		User:      models.UserProfile{ID: user.ID, Name: user.Name},
		SessionID: sessionID,
		DeviceID:  deviceID,
	}, nil
}

// lookupAccount returns ErrInvalidCredentials for unknown, malformed or inactive identifiers.
func (s *authService) lookupAccount(ctx context.Context, identifier string) (*models.Account, error) {
	var (
		account *models.Account
		err     error
	)
	switch {
	case strings.Contains(identifier, "@"):
		account, err = s.accounts.GetByEmail(ctx, identifier)
	case common.IsValidUsername(identifier):
		account, err = s.accounts.GetByUsername(ctx, identifier)
	default:
		return nil, ErrInvalidCredentials
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

func (s *authService) accessibleTenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.CanAccessTenant() {
		s.logger.Info("tenant not accessible", zap.String("tenant_id", tenant.ID.String()), zap.String("status", tenant.Status))
		return nil, ErrAccessDenied
	}
	return tenant, nil
}

func (s *authService) issuePair(account *models.Account, tenant *models.Tenant, audience string, sessionID uuid.UUID) (*models.TokenPair, *Claims, error) {
	access, accessClaims, err := s.tokens.IssueAccess(account, tenant, audience, sessionID)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshClaims, err := s.tokens.IssueRefresh(account, tenant, audience, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, refreshClaims, nil
}

// redemption is a refresh token that passed every check and may be consumed.
type redemption struct {
	claims  *Claims
	session *models.Session
	account *models.Account
	tenant  *models.Tenant
	hash    string
}

// redeemable runs the checks shared by refresh and logout, in order:
// signature, revocation markers, session validity, stored hash, account
// version, tenant agreement.
func (s *authService) redeemable(ctx context.Context, refreshToken string) (*redemption, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sessionID, err := claims.SessionUUID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	claimTenant, err := claims.TenantUUID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.revocations.IsTokenRevoked(ctx, sessionID, claims.ID)
	if err != nil {
		s.logger.Error("revocation lookup failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if revoked {
		s.logger.Info("revoked refresh token presented", zap.String("session_id", sessionID.String()))
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsValid(s.now()) {
		return nil, ErrInvalidToken
	}
	if !TokenMatchesHash(refreshToken, session.RefreshTokenHash) {
		s.logger.Info("refresh token does not match session", zap.String("session_id", sessionID.String()))
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByIDAndVersion(ctx, session.AccountID, claims.Version)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrInvalidCredentials
	}

	if session.TenantID != claimTenant || account.TenantID != claimTenant {
		s.logger.Warn("tenant mismatch on refresh token",
			zap.String("session_id", sessionID.String()),
			zap.String("claim_tenant_id", claimTenant.String()),
			zap.String("session_tenant_id", session.TenantID.String()),
			zap.String("account_tenant_id", account.TenantID.String()))
		return nil, ErrAccessDenied
	}

	tenant, err := s.accessibleTenant(ctx, claimTenant)
	if err != nil {
		return nil, err
	}

	return &redemption{
		claims:  claims,
		session: session,
		account: account,
		tenant:  tenant,
		hash:    session.RefreshTokenHash,
	}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken, origin string) (_ *models.TokenPair, err error) {
	defer func(started time.Time) { s.observe("refresh", started, err) }(time.Now())

	r, err := s.redeemable(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	pair, refreshClaims, err := s.issuePair(r.account, r.tenant, s.tokens.Audience(origin), r.session.ID)
	if err != nil {
		return nil, err
	}

	if err := s.revocations.MarkToken(ctx, r.session.ID, r.claims.ID, r.claims.ExpiresAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("mark refresh token: %w", err)
	}

	err = s.sessions.RotateRefreshToken(ctx, repositories.RefreshRotation{
		SessionID: r.session.ID,
		OldHash:   r.hash,
		NewHash:   HashToken(pair.RefreshToken),
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		Now:       s.now(),
	})
	if errors.Is(err, repositories.ErrStaleSession) {
		s.logger.Info("refresh lost rotation race", zap.String("session_id", r.session.ID.String()))
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return pair, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func(started time.Time) { s.observe("logout", started, err) }(time.Now())

	r, err := s.redeemable(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := s.revocations.MarkToken(ctx, r.session.ID, r.claims.ID, r.claims.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("mark refresh token: %w", err)
	}

	err = s.sessions.DeactivateWithHash(ctx, r.session.ID, r.hash)
	if errors.Is(err, repositories.ErrStaleSession) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	s.logger.Info("logged out", zap.String("session_id", r.session.ID.String()))
	return nil
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (_ *common.AuthContext, err error) {
	defer func(started time.Time) { s.observe("authenticate", started, err) }(time.Now())

	claims, err := s.tokens.Verify(accessToken, TokenKindAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	sessionID, err := claims.SessionUUID()
	if err != nil {
		return nil, ErrUnauthorized
	}
	claimTenant, err := claims.TenantUUID()
	if err != nil {
		return nil, ErrUnauthorized
	}
	accountID, err := claims.AccountUUID()
	if err != nil {
		return nil, ErrUnauthorized
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsValid(s.now()) || session.TenantID != claimTenant || session.AccountID != accountID {
		return nil, ErrUnauthorized
	}

	revoked, err := s.revocations.IsUserRevoked(ctx, session.UserID)
	if err != nil {
		s.logger.Error("revocation lookup failed", zap.String("user_id", session.UserID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	if revoked {
		return nil, ErrUnauthorized
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !account.IsActive || account.TenantID != claimTenant {
		return nil, ErrUnauthorized
	}

	tenant, err := s.accessibleTenant(ctx, claimTenant)
	if errors.Is(err, ErrAccessDenied) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, tenant.ID, account.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	return &common.AuthContext{Account: account, User: user, Session: session, Tenant: tenant}, nil
}

func (s *authService) ListSessions(ctx context.Context, account *models.Account) ([]models.Session, error) {
	return s.sessions.ListActiveByAccount(ctx, account.ID, s.now())
}

func (s *authService) RevokeSession(ctx context.Context, account *models.Account, sessionID uuid.UUID) (err error) {
	defer func(started time.Time) { s.observe("revoke_session", started, err) }(time.Now())

	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrAccessDenied
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.AccountID != account.ID || session.TenantID != account.TenantID {
		s.logger.Warn("attempt to revoke foreign session",
			zap.String("account_id", account.ID.String()),
			zap.String("session_id", sessionID.String()))
		return ErrAccessDenied
	}

	if err := s.sessions.Deactivate(ctx, session.ID); err != nil && !errors.Is(err, repositories.ErrStaleSession) {
		return err
	}
	if err := s.revocations.MarkSession(ctx, session.ID, session.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("mark session: %w", err)
	}
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, account *models.Account) (err error) {
	defer func(started time.Time) { s.observe("logout_all", started, err) }(time.Now())

	if _, err := s.accounts.BumpVersion(ctx, account.ID); err != nil {
		return fmt.Errorf("bump account version: %w", err)
	}
	return s.revokeAllSessions(ctx, account.ID)
}

func (s *authService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) (err error) {
	defer func(started time.Time) { s.observe("change_password", started, err) }(time.Now())

	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.hasher.Compare(account.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.revokeAllSessions(ctx, account.ID)
}

// DisableAccount deactivates an account of the admin's own tenant and kills
// its access tokens right away instead of at their expiry.
func (s *authService) DisableAccount(ctx context.Context, admin *models.User, accountID uuid.UUID) (err error) {
	defer func(started time.Time) { s.observe("disable_account", started, err) }(time.Now())

	if admin == nil || admin.Role != models.RoleAdmin {
		return ErrAccessDenied
	}
	target, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrAccessDenied
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if target.TenantID != admin.TenantID {
		return ErrAccessDenied
	}

	if _, err := s.accounts.Deactivate(ctx, target.ID); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if err := s.revokeAllSessions(ctx, target.ID); err != nil {
		return err
	}
	until := s.now().Add(s.tokens.AccessTTL()).UnixMilli()
	if err := s.revocations.MarkUser(ctx, target.UserID, until); err != nil {
		return fmt.Errorf("mark user: %w", err)
	}

	s.logger.Info("account disabled",
		zap.String("admin_user_id", admin.ID.String()),
		zap.String("account_id", target.ID.String()))
	return nil
}

func (s *authService) revokeAllSessions(ctx context.Context, accountID uuid.UUID) error {
	revoked, err := s.sessions.DeactivateAllForAccount(ctx, accountID)
	if err != nil {
		return err
	}
	var errs []error
	for _, rs := range revoked {
		if err := s.revocations.MarkSession(ctx, rs.ID, rs.ExpiresAt.UnixMilli()); err != nil {
			errs = append(errs, fmt.Errorf("mark session %s: %w", rs.ID, err))
		}
	}
	s.logger.Info("sessions revoked", zap.String("account_id", accountID.String()), zap.Int("count", len(revoked)))
	return errors.Join(errs...)
}
