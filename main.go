package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"

	"tweetyard/config"
	"tweetyard/form"
	"tweetyard/handler"
	"tweetyard/logging"
	"tweetyard/service"
	"tweetyard/storage"
	"tweetyard/store"
	"tweetyard/templates"
)

func main() {
	// a missing .env is fine; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.New(cfg.Log, os.Stdout)

	log.WithField("driver", cfg.DB.Driver).Info("running database schema migrations")
	db, err := store.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	files, err := storage.New(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("open attachment storage")
	}

	validator := form.NewValidator(cfg.Limits)
	h := handler.Handler{
		Posts:          service.NewPosts(&store.PostStore{DB: db}, files, validator, log),
		Accounts:       service.NewAccounts(&store.UserStore{DB: db}, validator, cfg.BcryptCost, log),
		Files:          files,
		Log:            log,
		Site:           cfg.Site,
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     cfg.SessionTTL,
		EnableSignup:   cfg.EnableSignup,
		Environment:    cfg.Env,
		MaxPostLength:  cfg.Limits.MaxPostLength,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
	}

	registry, err := templates.New(nil)
	if err != nil {
		log.WithError(err).Fatal("parse templates")
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = registry
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(log))
	h.Mount(e)

	if cfg.Addr != "" {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := e.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
		return
	}

	// Cache certificates to avoid issues with rate limits (https://letsencrypt.org/docs/rate-limits)
	e.AutoTLSManager.Cache = autocert.DirCache(cfg.CertCacheDir)
	if cfg.WhitelistHost != "" {
		e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(cfg.WhitelistHost)
	}
	e.Pre(middleware.HTTPSRedirect())
	log.Info("listening on :443 with automatic TLS")
	if err := e.StartAutoTLS(":443"); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server stopped")
	}
}
