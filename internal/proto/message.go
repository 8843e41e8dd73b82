package proto

// Inbound is the envelope for frames coming from the client. The event
// stream is one-way; clients only send keepalives.
type Inbound struct {
	Type string `json:"type"`
}

const (
	InboundTypePing = "ping"

	OutboundTypeEvent = "event"
	OutboundTypePong  = "pong"
)

// Outbound is the envelope for frames pushed to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}
