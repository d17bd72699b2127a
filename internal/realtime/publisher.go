package realtime

// Events pushed to connected clients. Every payload is a fully populated
// order snapshot.
const (
	EventNewOrder    = "newOrder"
	EventOrderUpdate = "orderUpdate"
)

// Envelope is the wire shape of a server-to-client message.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publisher routes an event to a single room. Rooms are keyed by user id, so
// an order change reaches exactly its student and its manager. Delivery is
// best-effort and at-most-once: a disconnected client resyncs with a REST
// fetch on reconnect.
type Publisher interface {
	Publish(room, event string, payload interface{})
}

// MultiPublisher fans a publish out to several publishers, typically the
// local hub plus an external bridge for other instances.
type MultiPublisher []Publisher

func (mp MultiPublisher) Publish(room, event string, payload interface{}) {
	for _, p := range mp {
		p.Publish(room, event, payload)
	}
}
