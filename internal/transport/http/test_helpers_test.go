package http

import (
	"context"
	stdhttp "net/http"
	"testing"
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
)

type testServer struct {
	handler stdhttp.Handler
	auth    *auth.Service
	store   store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	uploader, err := media.NewDiskUploader(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("failed to create uploader: %v", err)
	}

	logger := zerolog.Nop()
	presence := core.NewPresence()
	dispatcher := core.NewDispatcher(presence, &logger)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig, mailer.Discard{}, &logger)
	chatService := chats.New(st, dispatcher, uploader, 100, &logger)
	messageService := messages.New(st, dispatcher, uploader, &logger)
	requestService := requests.New(st, chatService, dispatcher, &logger)

	cfg := config.Default()
	cfg.MediaDir = t.TempDir()

	server := NewServer(Services{
		Auth:     authService,
		Chats:    chatService,
		Messages: messageService,
		Requests: requestService,
		Presence: presence,
		Store:    st,
	}, &cfg, &logger)

	return &testServer{handler: server.Handler, auth: authService, store: st}
}

// registerUser creates a user and returns its ID and bearer token.
func (ts *testServer) registerUser(t *testing.T, username string) (int64, string) {
	t.Helper()

	token, user, err := ts.auth.Register(context.Background(), "", username, "", "password123", "")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return user.ID, token
}
