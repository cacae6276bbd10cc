package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh_token"

// RefreshCookie carries the refresh token in a signed, HttpOnly cookie scoped to /auth.
type RefreshCookie struct {
	codec  *securecookie.SecureCookie
	secure bool
	domain string
	maxAge time.Duration
}

func NewRefreshCookie(hashKey []byte, secure bool, domain string, maxAge time.Duration) *RefreshCookie {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(maxAge.Seconds()))
	return &RefreshCookie{codec: codec, secure: secure, domain: domain, maxAge: maxAge}
}

func (rc *RefreshCookie) Set(c echo.Context, token string, expires time.Time) error {
	encoded, err := rc.codec.Encode(refreshCookieName, token)
	if err != nil {
		return err
	}
	c.SetCookie(rc.cookie(encoded, expires, int(time.Until(expires).Seconds())))
	return nil
}

// Read returns the refresh token from the request cookie, or "" when absent or tampered with.
func (rc *RefreshCookie) Read(c echo.Context) string {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	var token string
	if err := rc.codec.Decode(refreshCookieName, cookie.Value, &token); err != nil {
		return ""
	}
	return token
}

func (rc *RefreshCookie) Clear(c echo.Context) {
	c.SetCookie(rc.cookie("", time.Unix(0, 0), -1))
}

func (rc *RefreshCookie) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/auth",
		Domain:   rc.domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   rc.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
