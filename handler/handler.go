package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/casdoor/oss"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"tweetyard/config"
	"tweetyard/domain"
	"tweetyard/service"
	"tweetyard/storage"
)

type Handler struct {
	Posts    *service.Posts
	Accounts *service.Accounts
	Files    oss.StorageInterface
	Log      logrus.FieldLogger
	Site     domain.Site

	JWTSecret      string
	SessionTTL     time.Duration
	EnableSignup   bool
	Environment    string
	MaxPostLength  int
	MaxUploadBytes int64
}

const (
	csrfCookie = "_csrf"
	csrfField  = "csrf_token"
)

// Mount installs the body limit, CSRF and session middleware, the routes and
// the error page handler on e. The renderer is left to the caller.
func (h *Handler) Mount(e *echo.Echo) {
	e.HTTPErrorHandler = h.HTTPErrorHandler
	e.Use(middleware.BodyLimit(strconv.FormatInt(h.bodyLimit(), 10)))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		CookieName:     csrfCookie,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   !h.isDev(),
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(h.Session(), h.LoadUser)

	e.GET("/", h.Index)
	e.GET("/tweets", h.GetPosts)
	e.GET("/tweets/new", h.GetNewPostForm, h.RequireLogin)
	e.POST("/tweets/new", h.NewPost, h.RequireLogin)
	e.GET("/tweets/:id/edit", h.GetEditPostForm, h.RequireLogin)
	e.POST("/tweets/:id/edit", h.EditPost, h.RequireLogin)
	e.GET("/tweets/:id/delete", h.GetDeletePostForm, h.RequireLogin)
	e.POST("/tweets/:id/delete", h.DeletePost, h.RequireLogin)
	e.GET(storage.MediaPrefix+"*", h.GetMedia)

	e.GET("/register", h.GetNewUserForm)
	e.POST("/register", h.NewUser)
	e.GET("/login", h.GetLoginForm)
	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)
}

// bodyLimit lets a file up to twice the upload limit reach form validation,
// so the usual case gets a field error. Anything bigger is refused with 413.
func (h *Handler) bodyLimit() int64 {
	return 2*h.MaxUploadBytes + 1<<20
}

func (h *Handler) isDev() bool {
	return h.Environment == config.DevEnv
}
