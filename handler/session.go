package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"tweetyard/domain"
)

const (
	sessionCookie = "Authorization"
	flashCookie   = "flash"

	tokenKey = "session"
	userKey  = "user"
)

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session parses the session cookie when there is one. Requests without a
// valid cookie continue as anonymous.
func (h *Handler) Session() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(h.JWTSecret),
		TokenLookup: "cookie:" + sessionCookie,
		ContextKey:  tokenKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(sessionClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

// LoadUser resolves the session token to a stored user.
func (h *Handler) LoadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenKey).(*jwt.Token)
		if ok && token.Valid {
			if claims, ok := token.Claims.(*sessionClaims); ok {
				u, err := h.Accounts.Get(c.Request().Context(), claims.Subject)
				switch {
				case err == nil:
					c.Set(userKey, u)
				case errors.Is(err, domain.ErrNotFound):
					// account is gone; treat as anonymous
				default:
					return err
				}
			}
		}
		return next(c)
	}
}

// RequireLogin sends anonymous visitors to the login page and back afterwards.
func (h *Handler) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request().URL.RequestURI()))
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *domain.User {
	u, _ := c.Get(userKey).(*domain.User)
	return u
}

func (h *Handler) startSession(c echo.Context, u *domain.User) error {
	now := time.Now()
	exp := now.Add(h.SessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString([]byte(h.JWTSecret))
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   !h.isDev(),
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(userKey, u)
	return nil
}

func (h *Handler) endSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-1 * time.Second),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func setFlash(c echo.Context, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns the pending messages and expires the cookie that carried them.
func takeFlash(c echo.Context) []string {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	return []string{msg}
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/tweets"
	}
	return next
}
