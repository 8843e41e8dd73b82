package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/auth"
	"github.com/chattu-app/chattu-server/internal/config"
	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/mailer"
	"github.com/chattu-app/chattu-server/internal/media"
	"github.com/chattu-app/chattu-server/internal/service/chats"
	"github.com/chattu-app/chattu-server/internal/service/messages"
	"github.com/chattu-app/chattu-server/internal/service/requests"
	"github.com/chattu-app/chattu-server/internal/store"
	"github.com/chattu-app/chattu-server/internal/store/sqlite"
	transporthttp "github.com/chattu-app/chattu-server/internal/transport/http"
)

// App wires together storage, services and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}

	var mail mailer.Mailer = mailer.Discard{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		logger.Info().Str("smtp_host", cfg.SMTPHost).Msg("smtp mailer enabled")
	}

	uploader, err := media.NewDiskUploader(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init media storage: %w", err)
	}

	presence := core.NewPresence()
	dispatcher := core.NewDispatcher(presence, logger)

	authService := auth.NewService(st, jwtConfig, mail, logger)
	chatService := chats.New(st, dispatcher, uploader, cfg.GroupMemberCap, logger)
	messageService := messages.New(st, dispatcher, uploader, logger)
	requestService := requests.New(st, chatService, dispatcher, logger)

	server := transporthttp.NewServer(transporthttp.Services{
		Auth:     authService,
		Chats:    chatService,
		Messages: messageService,
		Requests: requestService,
		Presence: presence,
		Store:    st,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
