package core

import (
	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/metrics"
)

// Dispatcher fans events out to the live connections of a target user set.
//
// Delivery is fire-and-forget: offline users simply miss the event and
// reconcile via a full fetch on reconnect. Enqueueing never blocks the
// caller, and events to the same connection are delivered in Notify order.
type Dispatcher struct {
	presence *Presence
	log      *zerolog.Logger
}

// NewDispatcher creates a dispatcher resolving targets through presence.
func NewDispatcher(presence *Presence, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		presence: presence,
		log:      logger,
	}
}

// Notify pushes an event to every live connection of the target users.
// A target with no live connections is normal, not an error.
func (d *Dispatcher) Notify(kind EventKind, userIDs []int64, data any) {
	event := &Event{Kind: kind, Data: data}

	for _, client := range d.presence.ClientsFor(userIDs...) {
		select {
		case client.Events <- event:
			metrics.EventsDispatched.Inc()
		default:
			// Drop if slow consumer.
			metrics.EventsDropped.Inc()
			d.log.Warn().
				Str("conn_id", client.ID).
				Int64("user_id", client.UserID).
				Str("event", string(kind)).
				Msg("event dropped for slow connection")
		}
	}
}
