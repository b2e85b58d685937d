package ws

import "log"

// Broadcaster delivers typed events to a single connection or to every
// connection joined to a room. Delivery is fire and forget: write failures
// are logged, never surfaced to the caller. Acknowledgment, when a client
// expects one, is the event handler's return value, not the broadcaster's
// concern.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// SendTo sends an event to one connection. Unknown connection ids are a
// silent no-op, matching room lookups that race a disconnect.
func (b *Broadcaster) SendTo(connID, event string, payload any) {
	client, ok := b.registry.Get(connID)
	if !ok {
		return
	}
	if err := client.WriteEvent(event, payload); err != nil {
		log.Printf("Failed to send %s to %s: %v", event, connID, err)
	}
}

// SendToRoom sends an event to every connection in a room.
func (b *Broadcaster) SendToRoom(roomID, event string, payload any) {
	for _, connID := range b.registry.Members(roomID) {
		b.SendTo(connID, event, payload)
	}
}
