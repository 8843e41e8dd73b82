package core

import "sync"

// Presence maps user IDs to their live connections. It is shared by every
// connection in the process, so the user index is a sync.Map with one small
// lock per user rather than a single lock spanning unrelated users.
type Presence struct {
	users  sync.Map // int64 -> *userConns
	owners sync.Map // connection ID -> int64
}

type userConns struct {
	mu    sync.Mutex
	conns map[string]*Client
	// gone marks an entry that was removed from the index after its last
	// connection closed. A registration racing with that removal must not
	// land on it.
	gone bool
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{}
}

// Register binds a connection to its user. Idempotent if the connection is
// already registered.
func (p *Presence) Register(c *Client) {
	for {
		v, _ := p.users.LoadOrStore(c.UserID, &userConns{conns: make(map[string]*Client)})
		entry := v.(*userConns)

		entry.mu.Lock()
		if entry.gone {
			entry.mu.Unlock()
			continue
		}
		entry.conns[c.ID] = c
		entry.mu.Unlock()

		p.owners.Store(c.ID, c.UserID)
		return
	}
}

// Unregister removes a connection from whichever user owns it. Unknown
// connections are a no-op: disconnects can race with process restarts.
func (p *Presence) Unregister(connID string) {
	v, ok := p.owners.LoadAndDelete(connID)
	if !ok {
		return
	}
	userID := v.(int64)

	ev, ok := p.users.Load(userID)
	if !ok {
		return
	}
	entry := ev.(*userConns)

	entry.mu.Lock()
	delete(entry.conns, connID)
	if len(entry.conns) == 0 {
		entry.gone = true
		p.users.Delete(userID)
	}
	entry.mu.Unlock()
}

// ClientsFor returns the union of live clients for the given users. Users
// with no live connections contribute nothing.
func (p *Presence) ClientsFor(userIDs ...int64) []*Client {
	var clients []*Client
	for _, uid := range userIDs {
		v, ok := p.users.Load(uid)
		if !ok {
			continue
		}
		entry := v.(*userConns)
		entry.mu.Lock()
		for _, c := range entry.conns {
			clients = append(clients, c)
		}
		entry.mu.Unlock()
	}
	return clients
}

// ConnectionsFor returns the union of live connection IDs for the given users.
func (p *Presence) ConnectionsFor(userIDs ...int64) []string {
	clients := p.ClientsFor(userIDs...)
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return ids
}

// Online reports whether the user has at least one live connection.
func (p *Presence) Online(userID int64) bool {
	_, ok := p.users.Load(userID)
	return ok
}
