package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/media"
	"github.com/chattu-app/chattu-server/internal/service/chats"
	"github.com/chattu-app/chattu-server/internal/store"
	"github.com/chattu-app/chattu-server/internal/store/sqlite"
)

type testEnv struct {
	svc      *Service
	store    *sqlite.SQLiteStore
	presence *core.Presence
	users    []int64
}

func newTestEnv(t *testing.T, userCount int) *testEnv {
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
	chatService := chats.New(st, dispatcher, uploader, 100, &logger)
	svc := New(st, chatService, dispatcher, &logger)

	ctx := context.Background()
	users := make([]int64, 0, userCount)
	for i := 0; i < userCount; i++ {
		u, err := st.CreateUser(ctx, &store.User{
			Username:     fmt.Sprintf("user%d", i),
			PasswordHash: "hash",
		})
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		users = append(users, u.ID)
	}

	return &testEnv{svc: svc, store: st, presence: presence, users: users}
}

func (e *testEnv) connect(userID int64) <-chan *core.Event {
	client := core.NewClient(fmt.Sprintf("conn-%d", userID), userID)
	e.presence.Register(client)
	return client.Events
}

func mustEvent(t *testing.T, ch <-chan *core.Event, kind core.EventKind) *core.Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func TestSendRequest(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	sender, receiver := env.users[0], env.users[1]

	receiverCh := env.connect(receiver)

	req, err := env.svc.SendRequest(ctx, sender, receiver)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if req.Status != store.RequestStatusPending {
		t.Errorf("expected pending status, got %s", req.Status)
	}

	ev := mustEvent(t, receiverCh, core.EventRequestReceived)
	payload := ev.Data.(core.RequestReceivedPayload)
	if payload.RequestID != req.ID || payload.SenderID != sender {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestSendRequestToSelf(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	if _, err := env.svc.SendRequest(ctx, env.users[0], env.users[0]); !errors.Is(err, ErrInvalidMembership) {
		t.Fatalf("expected ErrInvalidMembership, got %v", err)
	}
}

func TestSendRequestUnknownReceiver(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	if _, err := env.svc.SendRequest(ctx, env.users[0], 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendRequestDuplicatePending(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	a, b := env.users[0], env.users[1]

	if _, err := env.svc.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	// Same direction and the reverse one both collide with the pending
	// request.
	if _, err := env.svc.SendRequest(ctx, a, b); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	if _, err := env.svc.SendRequest(ctx, b, a); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest for reverse direction, got %v", err)
	}
}

func TestConcurrentSendRequestOneWinner(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	a, b := env.users[0], env.users[1]

	// Both directions fired at once. The pending-pair exclusion must admit
	// exactly one request no matter how the inserts interleave.
	var (
		errA, errB error
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = env.svc.SendRequest(ctx, a, b)
	}()
	go func() {
		defer wg.Done()
		_, errB = env.svc.SendRequest(ctx, b, a)
	}()
	wg.Wait()

	refused := 0
	for _, err := range []error{errA, errB} {
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrDuplicateRequest) {
			t.Fatalf("unexpected error: %v", err)
		}
		refused++
	}
	if refused != 1 {
		t.Fatalf("expected exactly one refusal, got %d (a->b: %v, b->a: %v)", refused, errA, errB)
	}

	pendingA, err := env.svc.ListPending(ctx, a)
	if err != nil {
		t.Fatalf("ListPending(a) failed: %v", err)
	}
	pendingB, err := env.svc.ListPending(ctx, b)
	if err != nil {
		t.Fatalf("ListPending(b) failed: %v", err)
	}
	if len(pendingA)+len(pendingB) != 1 {
		t.Fatalf("expected one pending request between the pair, got %d incoming for a and %d for b",
			len(pendingA), len(pendingB))
	}
	if (errA == nil) != (len(pendingB) == 1) {
		t.Errorf("winner direction mismatch: a->b err=%v but b has %d incoming", errA, len(pendingB))
	}
}

func TestSendRequestBetweenFriends(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	a, b := env.users[0], env.users[1]

	req, err := env.svc.SendRequest(ctx, a, b)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := env.svc.Respond(ctx, req.ID, b, true); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	// The pair already shares a direct chat now.
	if _, err := env.svc.SendRequest(ctx, a, b); !errors.Is(err, ErrInvalidMembership) {
		t.Fatalf("expected ErrInvalidMembership, got %v", err)
	}
}

func TestAcceptCreatesDirectChat(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	sender, receiver := env.users[0], env.users[1]

	req, err := env.svc.SendRequest(ctx, sender, receiver)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	senderCh := env.connect(sender)
	receiverCh := env.connect(receiver)

	chat, err := env.svc.Respond(ctx, req.ID, receiver, true)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if chat == nil || chat.IsGroup {
		t.Fatal("expected a direct chat")
	}
	if len(chat.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(chat.Members))
	}

	for _, ch := range []<-chan *core.Event{senderCh, receiverCh} {
		ev := mustEvent(t, ch, core.EventRequestResolved)
		payload := ev.Data.(core.RequestResolvedPayload)
		if payload.Status != string(store.RequestStatusAccepted) {
			t.Errorf("expected accepted status, got %s", payload.Status)
		}
	}

	friends, err := env.svc.ListFriends(ctx, sender)
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != receiver {
		t.Fatalf("expected receiver as the only friend, got %v", friends)
	}
}

func TestRejectNotifiesSenderOnly(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	sender, receiver := env.users[0], env.users[1]

	req, err := env.svc.SendRequest(ctx, sender, receiver)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	senderCh := env.connect(sender)
	receiverCh := env.connect(receiver)

	chat, err := env.svc.Respond(ctx, req.ID, receiver, false)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if chat != nil {
		t.Fatal("rejection must not create a chat")
	}

	ev := mustEvent(t, senderCh, core.EventRequestResolved)
	if ev.Data.(core.RequestResolvedPayload).Status != string(store.RequestStatusRejected) {
		t.Error("expected rejected status in payload")
	}
	select {
	case ev := <-receiverCh:
		t.Fatalf("receiver should not be notified, got %v", ev.Kind)
	default:
	}

	// A rejected request does not block a new attempt for the pair.
	if _, err := env.svc.SendRequest(ctx, sender, receiver); err != nil {
		t.Fatalf("expected re-send after rejection to succeed, got %v", err)
	}
}

func TestRespondAuthorization(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	sender, receiver, other := env.users[0], env.users[1], env.users[2]

	req, err := env.svc.SendRequest(ctx, sender, receiver)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	// Not even the sender may resolve, only the receiver.
	if _, err := env.svc.Respond(ctx, req.ID, sender, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for sender, got %v", err)
	}
	if _, err := env.svc.Respond(ctx, req.ID, other, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for third party, got %v", err)
	}
	if _, err := env.svc.Respond(ctx, 999, receiver, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRespondAlreadyResolved(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	sender, receiver := env.users[0], env.users[1]

	req, err := env.svc.SendRequest(ctx, sender, receiver)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := env.svc.Respond(ctx, req.ID, receiver, false); err != nil {
		t.Fatalf("first Respond failed: %v", err)
	}
	if _, err := env.svc.Respond(ctx, req.ID, receiver, true); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestListPending(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	receiver := env.users[2]

	for _, sender := range env.users[:2] {
		if _, err := env.svc.SendRequest(ctx, sender, receiver); err != nil {
			t.Fatalf("SendRequest failed: %v", err)
		}
	}

	pending, err := env.svc.ListPending(ctx, receiver)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(pending))
	}

	// Senders have no incoming requests.
	pending, err = env.svc.ListPending(ctx, env.users[0])
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %d", len(pending))
	}
}
