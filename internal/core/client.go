package core

// Client is one live connection bound to an authenticated user. A user with
// several devices has several clients.
type Client struct {
	ID     string // connection ID, unique per socket
	UserID int64
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, userID int64) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, 32),
	}
}
