package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vocabapp/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims carries both token kinds. Access tokens set Subject to the account id;
// refresh tokens set ID (jti) and Version instead.
type Claims struct {
	Email     string    `json:"email"`
	TenantID  string    `json:"tid"`
	SessionID string    `json:"sid"`
	Version   int64     `json:"ver,omitempty"`
	Type      TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) SessionUUID() (uuid.UUID, error) {
	return uuid.Parse(c.SessionID)
}

func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

func (c *Claims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenService issues and verifies HS256 tokens. Access and refresh tokens are
// signed with different secrets so one can never be replayed as the other.
type TokenService interface {
	IssueAccess(account *models.Account, tenant *models.Tenant, audience string, sessionID uuid.UUID) (string, *Claims, error)
	IssueRefresh(account *models.Account, tenant *models.Tenant, audience string, sessionID uuid.UUID) (string, *Claims, error)
	Verify(token string, kind TokenKind) (*Claims, error)
	// Audience picks the aud claim for a request coming from origin.
	Audience(origin string) string
	AccessTTL() time.Duration
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Domain        string
}

type tokenService struct {
	cfg      TokenConfig
	audience *regexp.Regexp
	now      func() time.Time
}

func NewTokenService(cfg TokenConfig, now func() time.Time) TokenService {
	if now == nil {
		now = time.Now
	}
	domain := strings.ToLower(cfg.Domain)
	return &tokenService{
		cfg:      cfg,
		audience: regexp.MustCompile(`^([a-z0-9-]+\.)*` + regexp.QuoteMeta(domain) + `$`),
		now:      now,
	}
}

func (s *tokenService) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

func (s *tokenService) IssueAccess(account *models.Account, tenant *models.Tenant, audience string, sessionID uuid.UUID) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email:     account.Email,
		TenantID:  tenant.ID.String(),
		SessionID: sessionID.String(),
		Type:      TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   account.ID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	return s.sign(claims, s.cfg.AccessSecret)
}

func (s *tokenService) IssueRefresh(account *models.Account, tenant *models.Tenant, audience string, sessionID uuid.UUID) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email:     account.Email,
		TenantID:  tenant.ID.String(),
		SessionID: sessionID.String(),
		Version:   account.Version,
		Type:      TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	return s.sign(claims, s.cfg.RefreshSecret)
}

func (s *tokenService) sign(claims *Claims, secret []byte) (string, *Claims, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, kind, issuer, audience and expiry. A token is
// expired from the exact second in its exp claim. Every failure is ErrInvalidToken.
func (s *tokenService) Verify(token string, kind TokenKind) (*Claims, error) {
	secret := s.cfg.AccessSecret
	if kind == TokenKindRefresh {
		secret = s.cfg.RefreshSecret
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	if !s.audienceAllowed(claims.Audience) {
		return nil, fmt.Errorf("%w: audience not allowed", ErrInvalidToken)
	}
	if claims.SessionID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	if kind == TokenKindRefresh && claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if kind == TokenKindAccess && claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims, nil
}

func (s *tokenService) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if s.audience.MatchString(strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func (s *tokenService) Audience(origin string) string {
	if origin == "" {
		return s.cfg.Domain
	}
	u, err := url.Parse(origin)
	if err != nil {
		return s.cfg.Domain
	}
	host := strings.ToLower(u.Hostname())
	if host != "" && s.audience.MatchString(host) {
		return host
	}
	return s.cfg.Domain
}

// HashToken returns the hex sha256 digest stored in place of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatchesHash compares token against a stored digest in constant time.
func TokenMatchesHash(token, storedHash string) bool {
	presented := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}

// DeviceID fingerprints a client by user agent and address.
func DeviceID(userAgent, ip string) string {
	return HashToken(userAgent + ip)
}
