package projection

// Resolver maps a message to the ordered handlers that apply to it.
// It may return an empty slice, in which case projecting the message is a no-op.
// A returned error is surfaced unchanged and no handler runs.
// Resolvers must be safe for concurrent use by multiple goroutines.
type Resolver[C any] func(msg Message) ([]Handler[C], error)
