package engine

// Notifier wakes a worker routine when new work is available. A notification sent
// while nobody is listening is remembered, and repeated notifications before the
// worker wakes up collapse into one. Notifier is passed by value; copies share state.
type Notifier struct {
	// buffered channel with capacity 1; a pending element is the remembered notification
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify records a notification. It never blocks.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel returns a channel for receiving notifications
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
