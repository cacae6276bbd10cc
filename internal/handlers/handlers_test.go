package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vocabapp/internal/metrics"
	"vocabapp/internal/middleware"
	"vocabapp/internal/models"
	"vocabapp/internal/services"
	"vocabapp/testhelpers"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type HandlersTestSuite struct {
	suite.Suite
	clock  *testhelpers.Clock
	store  *testhelpers.Store
	e      *echo.Echo
	member testhelpers.Fixture
	admin  testhelpers.Fixture
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func (suite *HandlersTestSuite) SetupTest() {
	suite.clock = testhelpers.NewClock(time.Now().UTC().Truncate(time.Second))
	suite.store = testhelpers.NewStore()
	revocations, _ := testhelpers.NewRevocationCache(suite.T(), suite.clock.Now)

	reg := prometheus.NewRegistry()
	authService := services.NewAuthService(services.AuthDependencies{
		Accounts:    suite.store.Accounts(),
		Users:       suite.store.Users(),
		Tenants:     suite.store.Tenants(),
		Sessions:    suite.store.Sessions(),
		Revocations: revocations,
		Tokens: services.NewTokenService(services.TokenConfig{
			AccessSecret:  []byte("access-secret-access-secret-0123"),
			RefreshSecret: []byte("refresh-secret-refresh-secret-01"),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			Issuer:        "vocabapp-auth",
			Domain:        "vocabapp.local",
		}, suite.clock.Now),
		Hasher:  services.NewHasher(bcrypt.MinCost),
		Metrics: metrics.NewAuthMetrics(reg),
		Now:     suite.clock.Now,
	})

	cookie := NewRefreshCookie([]byte("cookie-hash-key-cookie-hash-key!"), false, "", 24*time.Hour)
	suite.e = NewRouter(RouterConfig{
		Auth:     NewAuthHandlers(authService, cookie, nil),
		Sessions: NewSessionHandlers(authService, cookie, nil),
		Health: NewHealthHandlers(map[string]Pinger{
			"database": suite.store.Sessions(),
			"redis":    revocations,
		}, "test"),
		Guard:    middleware.NewAccessGuard(authService, nil),
		Gatherer: reg,
	})

	tenant := testhelpers.SeedTenant(suite.store, "acme")
	suite.member = testhelpers.SeedAccount(suite.T(), suite.store, tenant, "jane", models.RoleMember)
	suite.admin = testhelpers.SeedAccount(suite.T(), suite.store, tenant, "boss", models.RoleAdmin)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) do(method, path, body, bearer string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; Mobile)")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)
	return rec
}

func (suite *HandlersTestSuite) login(identifier string) (LoginResponse, *http.Cookie) {
	rec := suite.do(http.MethodPost, "/auth/login", `{"emailOrUsername":"`+identifier+`","password":"`+testhelpers.DefaultPassword+`"}`, "")
	require.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(suite.T(), cookie)
	return resp, cookie
}

func (suite *HandlersTestSuite) TestLogin_ReturnsTokensProfileAndCookie() {
	resp, cookie := suite.login("jane")

	assert.NotEmpty(suite.T(), resp.AccessToken)
	assert.NotEmpty(suite.T(), resp.RefreshToken)
	assert.Equal(suite.T(), suite.member.User.ID, resp.User.ID)
	assert.Equal(suite.T(), "jane", resp.User.Name)

	assert.True(suite.T(), cookie.HttpOnly)
	assert.Equal(suite.T(), http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(suite.T(), "/auth", cookie.Path)
	assert.NotEqual(suite.T(), resp.RefreshToken, cookie.Value)
}

func (suite *HandlersTestSuite) TestLogin_ErrorsMapToStatus() {
	rec := suite.do(http.MethodPost, "/auth/login", `{"emailOrUsername":"jane","password":"wrong-password"}`, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	rec = suite.do(http.MethodPost, "/auth/login", `{"emailOrUsername":"","password":""}`, "")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	tenant := suite.member.Tenant
	tenant.Status = models.TenantStatusSuspended
	suite.store.PutTenant(tenant)
	rec = suite.do(http.MethodPost, "/auth/login", `{"emailOrUsername":"jane","password":"`+testhelpers.DefaultPassword+`"}`, "")
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
	assert.Equal(suite.T(), "no-store", rec.Header().Get(echo.HeaderCacheControl))
}

func (suite *HandlersTestSuite) TestRefresh_FromBodyAndFromCookie() {
	resp, cookie := suite.login("jane")
	suite.clock.Advance(time.Second)

	rec := suite.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+resp.RefreshToken+`"}`, "")
	require.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())
	var pair models.TokenPair
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.NotEqual(suite.T(), resp.RefreshToken, pair.RefreshToken)

	// the original cookie holds the now-consumed token
	rec = suite.do(http.MethodPost, "/auth/refresh", "", "", cookie)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	var rotated *http.Cookie
	first := suite.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+pair.RefreshToken+`"}`, "")
	require.Equal(suite.T(), http.StatusOK, first.Code)
	for _, c := range first.Result().Cookies() {
		if c.Name == refreshCookieName {
			rotated = c
		}
	}
	require.NotNil(suite.T(), rotated)
	rec = suite.do(http.MethodPost, "/auth/refresh", "", "", rotated)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
}

func (suite *HandlersTestSuite) TestRefresh_MissingOrTamperedToken() {
	rec := suite.do(http.MethodPost, "/auth/refresh", "", "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	rec = suite.do(http.MethodPost, "/auth/refresh", "", "", &http.Cookie{Name: refreshCookieName, Value: "forged"})
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) TestLogout_ClearsCookieAndTokenIsDead() {
	resp, _ := suite.login("jane")

	rec := suite.do(http.MethodPost, "/auth/logout", `{"refreshToken":"`+resp.RefreshToken+`"}`, "")
	require.Equal(suite.T(), http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			assert.Empty(suite.T(), c.Value)
			assert.True(suite.T(), c.MaxAge < 0)
		}
	}

	rec = suite.do(http.MethodPost, "/auth/logout", `{"refreshToken":"`+resp.RefreshToken+`"}`, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	rec = suite.do(http.MethodGet, "/auth/me", "", resp.AccessToken)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) clearedCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName && c.Value == "" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func (suite *HandlersTestSuite) TestLogout_RejectedTokenStillClearsCookie() {
	_, cookie := suite.login("jane")

	rec := suite.do(http.MethodPost, "/auth/logout", "", "", cookie)
	require.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.True(suite.T(), suite.clearedCookie(rec))

	// same cookie again: the session is gone, the response is 401 and the cookie is cleared again
	rec = suite.do(http.MethodPost, "/auth/logout", "", "", cookie)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	assert.True(suite.T(), suite.clearedCookie(rec))

	rec = suite.do(http.MethodPost, "/auth/logout", "", "", &http.Cookie{Name: refreshCookieName, Value: "forged"})
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	assert.True(suite.T(), suite.clearedCookie(rec))
}

func (suite *HandlersTestSuite) TestMe() {
	resp, _ := suite.login("jane@example.com")

	rec := suite.do(http.MethodGet, "/auth/me", "", resp.AccessToken)
	require.Equal(suite.T(), http.StatusOK, rec.Code)
	var me MeResponse
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(suite.T(), "jane", me.Username)
	assert.Equal(suite.T(), suite.member.Tenant.ID.String(), me.TenantID)

	rec = suite.do(http.MethodGet, "/auth/me", "", "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) TestSessions_ListAndRevoke() {
	phone, _ := suite.login("jane")
	laptop, _ := suite.login("jane")

	rec := suite.do(http.MethodGet, "/auth/sessions", "", laptop.AccessToken)
	require.Equal(suite.T(), http.StatusOK, rec.Code)
	var body struct {
		Sessions []SessionResponse `json:"sessions"`
	}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(suite.T(), body.Sessions, 2)
	assert.Equal(suite.T(), "mobile", body.Sessions[0].DeviceType)

	var phoneID string
	for _, s := range body.Sessions {
		if !s.Current {
			phoneID = s.ID
		}
	}
	require.NotEmpty(suite.T(), phoneID)

	rec = suite.do(http.MethodDelete, "/auth/sessions/"+phoneID, "", laptop.AccessToken)
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)
	rec = suite.do(http.MethodGet, "/auth/me", "", phone.AccessToken)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	rec = suite.do(http.MethodDelete, "/auth/sessions/not-a-uuid", "", laptop.AccessToken)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestLogoutAll() {
	a, _ := suite.login("jane")
	b, _ := suite.login("jane")

	rec := suite.do(http.MethodPost, "/auth/logout-all", "", a.AccessToken)
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)

	rec = suite.do(http.MethodGet, "/auth/me", "", b.AccessToken)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	rec = suite.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+b.RefreshToken+`"}`, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) TestChangePassword() {
	resp, _ := suite.login("jane")

	rec := suite.do(http.MethodPost, "/auth/password", `{"currentPassword":"nope","newPassword":"brand-new-password"}`, resp.AccessToken)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	rec = suite.do(http.MethodPost, "/auth/password", `{"currentPassword":"`+testhelpers.DefaultPassword+`","newPassword":"brand-new-password"}`, resp.AccessToken)
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)

	rec = suite.do(http.MethodPost, "/auth/login", `{"emailOrUsername":"jane","password":"brand-new-password"}`, "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
}

func (suite *HandlersTestSuite) TestDisableAccount_AdminOnly() {
	member, _ := suite.login("jane")
	admin, _ := suite.login("boss")

	rec := suite.do(http.MethodPost, "/admin/accounts/"+suite.admin.Account.ID.String()+"/disable", "", member.AccessToken)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)

	rec = suite.do(http.MethodPost, "/admin/accounts/"+suite.member.Account.ID.String()+"/disable", "", admin.AccessToken)
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)

	rec = suite.do(http.MethodGet, "/auth/me", "", member.AccessToken)
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) TestRegister() {
	rec := suite.do(http.MethodPost, "/auth/register", `{"tenantSlug":"acme","name":"Kim","username":"kim","email":"kim@example.com","password":"long-enough-password"}`, "")
	assert.Equal(suite.T(), http.StatusCreated, rec.Code, rec.Body.String())

	rec = suite.do(http.MethodPost, "/auth/register", `{"tenantSlug":"acme","name":"Kim","username":"kim","email":"kim2@example.com","password":"long-enough-password"}`, "")
	assert.Equal(suite.T(), http.StatusConflict, rec.Code)

	rec = suite.do(http.MethodPost, "/auth/register", `{"tenantSlug":"acme","name":"Kim","username":"kim2","email":"kim2@example.com","password":"short"}`, "")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestHealthAndMetrics() {
	rec := suite.do(http.MethodGet, "/health", "", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	rec = suite.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	suite.login("jane")
	rec = suite.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `vocabapp_auth_operations_total{operation="login",outcome="success"} 1`)
}

func TestReadinessCheck_DependencyDown(t *testing.T) {
	h := NewHealthHandlers(map[string]Pinger{"redis": failingPinger{}}, "test")
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

	require.NoError(t, h.ReadinessCheck(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unhealthy"`)
}

func TestDeviceType(t *testing.T) {
	assert.Equal(t, "unknown", deviceType(""))
	assert.Equal(t, "mobile", deviceType("Mozilla/5.0 (Linux; Android 14) Mobile"))
	assert.Equal(t, "tablet", deviceType("Mozilla/5.0 (iPad; CPU OS 17_0)"))
	assert.Equal(t, "desktop", deviceType("Mozilla/5.0 (X11; Linux x86_64)"))
}

func TestRefreshCookie_RoundTripAndTamper(t *testing.T) {
	rc := NewRefreshCookie([]byte("cookie-hash-key-cookie-hash-key!"), true, "vocabapp.local", time.Hour)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), rec)
	require.NoError(t, rc.Set(c, "refresh.jwt.value", time.Now().Add(time.Hour)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, "vocabapp.local", cookies[0].Domain)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, "refresh.jwt.value", rc.Read(e.NewContext(req, httptest.NewRecorder())))

	other := NewRefreshCookie([]byte("another-key-another-key-another!"), true, "", time.Hour)
	assert.Empty(t, other.Read(e.NewContext(req, httptest.NewRecorder())))
}
