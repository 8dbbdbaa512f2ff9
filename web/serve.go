package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
	"github.com/devilmonastery/studenthistory/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/studenthistory/internal/infrastructure/sheets"
	"github.com/devilmonastery/studenthistory/internal/telegram"
	"github.com/devilmonastery/studenthistory/migrations"
	"github.com/devilmonastery/studenthistory/web/internal/handlers"
	"github.com/devilmonastery/studenthistory/web/internal/middleware"
	"github.com/devilmonastery/studenthistory/web/internal/render"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

const shutdownTimeout = 15 * time.Second

// newRepositories builds the PostgreSQL repositories
func newRepositories(conn *postgres.Connection) *repositories.Repositories {
	return &repositories.Repositories{
		Students:      postgres.NewStudentRepository(conn.DB),
		TelegramLinks: postgres.NewTelegramLinkRepository(conn.DB),
		PendingLinks:  postgres.NewPendingLinkRepository(conn.DB),
		Tokens:        postgres.NewTokenRepository(conn.DB),
		AccessLogs:    postgres.NewAccessLogRepository(conn.DB),
		Admins:        postgres.NewAdminRepository(conn.DB),
		Messages:      postgres.NewMessageRepository(conn.DB),
	}
}

// secretKey decodes a base64 secret, falls back to the raw string and
// finally to random bytes that do not survive a restart
func secretKey(name, value string, log *slog.Logger) ([]byte, error) {
	if value != "" {
		if decoded, err := base64.StdEncoding.DecodeString(value); err == nil && len(decoded) >= 32 {
			return decoded, nil
		}
		if len(value) < 32 {
			log.Warn("secret is shorter than 32 bytes", "secret", name)
		}
		return []byte(value), nil
	}

	log.Warn("no secret configured, generating random one (sessions won't persist)", "secret", name)
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", name, err)
	}
	return key, nil
}

func runServer(ctx context.Context, cfg *config.Config, forceVersion int) error {
	log := slog.Default().With("component", "server")
	log.Info("Starting studenthistory", "version", handlers.Version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if forceVersion >= 0 {
		log.Info("Force setting migration version", "version", forceVersion)
		if err := conn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("Migration version forced, exiting", "version", forceVersion)
		return nil
	}
	if err := conn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	repos := newRepositories(conn)
	appLog := slog.Default()

	// Services
	tokenSvc := services.NewTokenService(repos.Tokens, repos.Students)
	studentSvc := services.NewStudentService(repos.Students, tokenSvc, appLog)
	linkSvc := services.NewLinkService(repos.TelegramLinks, repos.PendingLinks, repos.Students, appLog)
	accessSvc := services.NewAccessService(repos.AccessLogs, appLog)

	adminKey, err := secretKey("auth.admin.signing_key", cfg.Auth.Admin.SigningKey, log)
	if err != nil {
		return err
	}
	jwtManager := auth.NewJWTManager(string(adminKey), cfg.Auth.Admin.Lifetime)
	adminSvc := services.NewAdminService(repos.Admins, jwtManager, appLog)

	// Telegram bot
	var messenger services.Messenger
	if cfg.Telegram.BotConfigured() {
		bot, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.BotUsername, linkSvc, appLog)
		if err != nil {
			log.Error("Telegram bot unavailable, admin messaging disabled", "error", err)
		} else {
			messenger = bot.Messenger()
			if cfg.Telegram.EnableBot {
				go func() {
					if err := bot.Run(ctx); err != nil {
						log.Error("Telegram bot stopped", "error", err)
					}
				}()
			}
			log.Info("Telegram bot ready", "username", bot.Username())
		}
	} else {
		log.Warn("Telegram bot token not configured, Mini App authentication disabled")
	}
	messageSvc := services.NewMessageService(repos.Messages, repos.TelegramLinks, messenger, appLog)

	// Google Sheets
	var (
		source services.SheetSource = sheets.Disabled{}
		cache  handlers.SheetsCache
	)
	if cfg.Sheets.SpreadsheetID != "" {
		client, err := sheets.NewClient(ctx, cfg.Sheets, appLog)
		if err != nil {
			return fmt.Errorf("failed to create sheets client: %w", err)
		}
		defer client.Close()
		source, cache = client, client
	} else {
		log.Warn("Google Sheets not configured, lesson history unavailable")
	}
	historySvc := services.NewHistoryService(source, appLog)

	// Authentication
	initData := auth.NewInitDataValidator(cfg.Telegram.BotToken)
	resolver := auth.NewResolver(
		initData,
		auth.NewTokenValidator(repos.Tokens, repos.Students, appLog),
		repos.TelegramLinks, repos.PendingLinks, cfg.Auth.InitDataMaxAge, appLog)
	sessionKey, err := secretKey("session.secret", cfg.Session.Secret, log)
	if err != nil {
		return err
	}
	cookies := session.NewCookieCodec(cfg.Session, sessionKey)
	sessionMgr := session.NewManager(sessionKey, cfg.Session.Secure, cfg.Session.AdminMaxAge, jwtManager)

	trustProxy := cfg.Server.TrustProxyHeaders
	mw := handlers.Middlewares{
		StudentAuth: middleware.NewStudentAuth(resolver, cookies, accessSvc, trustProxy, appLog),
		AdminAuth:   middleware.NewAdminAuth(sessionMgr, appLog),
		CSRF:        middleware.NewCSRFGuard(initData, cfg.Auth.InitDataMaxAge, appLog),
		TrustProxy:  trustProxy,
	}
	if cfg.RateLimit.Enabled {
		mw.General = middleware.NewRateLimiter("general", cfg.RateLimit.RequestsPerMin, middleware.DefaultWindow, appLog)
		mw.Strict = middleware.NewRateLimiter("strict", cfg.RateLimit.LoginPerMin, middleware.DefaultWindow, appLog)
		go mw.General.RunSweeper(ctx, cfg.RateLimit.CleanupInterval)
		go mw.Strict.RunSweeper(ctx, cfg.RateLimit.CleanupInterval)
	}

	templates, err := render.LoadTemplates(cfg.Server.TemplatesPath)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	render.LogTemplateNames(templates, appLog)

	h := handlers.New(handlers.Deps{
		Templates:      templates,
		StudentAuth:    mw.StudentAuth,
		Cookies:        cookies,
		Sessions:       sessionMgr,
		InitData:       initData,
		Students:       studentSvc,
		Links:          linkSvc,
		Tokens:         tokenSvc,
		Access:         accessSvc,
		Admins:         adminSvc,
		Messages:       messageSvc,
		History:        historySvc,
		Sheets:         cache,
		DB:             conn,
		BaseURL:        cfg.Server.BaseURL,
		InitDataMaxAge: cfg.Auth.InitDataMaxAge,
		TrustProxy:     trustProxy,
	}, appLog)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handlers.NewRouter(h, mw, appLog),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddress(),
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Starting metrics server", "address", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed, forcing", "error", err)
		srv.Close()
	}
	log.Info("Shutdown complete")
	return nil
}
