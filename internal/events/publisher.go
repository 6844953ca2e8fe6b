package events

// Publisher is the write side of the hub as seen by bridge components.
type Publisher interface {
	Publish(eventType string, data any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, any) {}

// Multi fans every event out to each publisher in order.
type Multi []Publisher

func (m Multi) Publish(eventType string, data any) {
	for _, p := range m {
		p.Publish(eventType, data)
	}
}
