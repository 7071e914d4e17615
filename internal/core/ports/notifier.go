package ports

// Notifier is the fire-and-forget observer sink for operator-facing events.
// Implementations must never block the calling pipeline and are never
// retried.
type Notifier interface {
	Notify(message, eventKind string)
}
