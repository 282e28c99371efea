package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tweetyard/form"
)

type userFormDTO struct {
	Username string
	Next     string
	Errors   map[string]string
}

func (h *Handler) signupAllowed() bool {
	return h.isDev() || h.EnableSignup
}

func (h *Handler) GetNewUserForm(c echo.Context) error {
	if !h.signupAllowed() {
		return c.HTML(http.StatusForbidden, "<h1>Forbidden!</h1><p>Sign up has been disabled.</p>")
	}
	return h.render(c, http.StatusOK, "register.html", userFormDTO{})
}

func (h *Handler) NewUser(c echo.Context) error {
	if !h.signupAllowed() {
		return c.HTML(http.StatusForbidden, "<h1>Forbidden!</h1><p>Sign up has been disabled.</p>")
	}

	in := form.Registration{
		Username:  c.FormValue("username"),
		Password1: c.FormValue("password1"),
		Password2: c.FormValue("password2"),
	}
	user, err := h.Accounts.Register(c.Request().Context(), in)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		return h.render(c, http.StatusOK, "register.html", userFormDTO{Username: in.Username, Errors: verr.Fields})
	}
	if err != nil {
		return err
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}
	setFlash(c, "Registration successful! You are now logged in.")
	return c.Redirect(http.StatusFound, "/tweets")
}

func (h *Handler) GetLoginForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "login.html", userFormDTO{Next: c.QueryParam("next")})
}

func (h *Handler) Login(c echo.Context) error {
	in := form.Login{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
	}
	next := c.FormValue("next")

	user, err := h.Accounts.Login(c.Request().Context(), in)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		return h.render(c, http.StatusOK, "login.html", userFormDTO{Username: in.Username, Next: next, Errors: verr.Fields})
	}
	if err != nil {
		return err
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, safeNext(next))
}

func (h *Handler) Logout(c echo.Context) error {
	h.endSession(c)
	return c.Redirect(http.StatusFound, "/tweets")
}
