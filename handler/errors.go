package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tweetyard/domain"
)

type errorDTO struct {
	Code    int
	Message string
}

var errorMessages = map[int]string{
	http.StatusNotFound:              "The page you were looking for does not exist.",
	http.StatusForbidden:             "You are not allowed to do that.",
	http.StatusRequestEntityTooLarge: "The upload is too large.",
}

// HTTPErrorHandler renders error.html for every failure. Server errors are logged.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	}

	if code >= http.StatusInternalServerError {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"uri":    c.Request().RequestURI,
		}).Error("request failed")
	}

	msg, ok := errorMessages[code]
	if !ok {
		msg = http.StatusText(code)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = h.render(c, code, "error.html", errorDTO{Code: code, Message: msg})
	}
	if err != nil {
		h.Log.WithError(err).Error("render error page")
	}
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return echo.ErrNotFound
	}
	return err
}
