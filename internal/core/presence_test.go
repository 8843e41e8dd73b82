package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestPresenceRegisterUnregister(t *testing.T) {
	p := NewPresence()

	c1 := NewClient("conn-1", 1)
	c2 := NewClient("conn-2", 1)
	p.Register(c1)
	p.Register(c2)

	if !p.Online(1) {
		t.Fatal("expected user 1 online")
	}
	if got := len(p.ClientsFor(1)); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	p.Unregister("conn-1")
	if got := len(p.ClientsFor(1)); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	if p.ClientsFor(1)[0].ID != "conn-2" {
		t.Fatal("expected the surviving client to be conn-2")
	}

	p.Unregister("conn-2")
	if p.Online(1) {
		t.Fatal("expected user 1 offline after last unregister")
	}
}

func TestPresenceUnregisterUnknownConn(t *testing.T) {
	p := NewPresence()
	// Must not panic or corrupt state.
	p.Unregister("no-such-conn")
	if p.Online(1) {
		t.Fatal("expected nobody online")
	}
}

func TestPresenceClientsForMultipleUsers(t *testing.T) {
	p := NewPresence()
	p.Register(NewClient("a", 1))
	p.Register(NewClient("b", 2))
	p.Register(NewClient("c", 3))

	clients := p.ClientsFor(1, 3)
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	for _, c := range clients {
		if c.UserID != 1 && c.UserID != 3 {
			t.Errorf("unexpected user %d in result", c.UserID)
		}
	}
}

func TestPresenceConcurrentChurn(t *testing.T) {
	p := NewPresence()

	const (
		users      = 8
		perUser    = 16
		reconnects = 10
	)

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < perUser; c++ {
			wg.Add(1)
			go func(userID int64, conn int) {
				defer wg.Done()
				for i := 0; i < reconnects; i++ {
					id := fmt.Sprintf("u%d-c%d-i%d", userID, conn, i)
					client := NewClient(id, userID)
					p.Register(client)
					p.Unregister(id)
				}
			}(int64(u), c)
		}
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		if p.Online(int64(u)) {
			t.Errorf("user %d still online after all connections closed", u)
		}
	}
}

func TestPresenceRegisterDuringRemoval(t *testing.T) {
	p := NewPresence()

	// Hammer the register/unregister race on a single user: a register
	// racing the removal of the user's emptied entry must still land.
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("conn-%d", i)
		wg.Add(2)
		go func(connID string) {
			defer wg.Done()
			p.Register(NewClient(connID, 42))
		}(id)
		go func(connID string) {
			defer wg.Done()
			p.Unregister(connID)
		}(id)
	}
	wg.Wait()

	// Whatever connections survived the race must be reachable.
	for _, c := range p.ClientsFor(42) {
		p.Unregister(c.ID)
	}
	if p.Online(42) {
		t.Fatal("expected user offline after draining survivors")
	}
}
