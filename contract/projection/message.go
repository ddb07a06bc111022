package projection

// Message is an immutable, event-like value handed to a projector.
// Handlers are selected by the message's dynamic type.
type Message = any
