package projection

import "context"

// Projector is the dispatch contract exposed to consumer loops.
// The concrete, generic implementation lives in the projector package; this interface
// is intended for consumers that want to depend only on contracts.
type Projector[C any] interface {
	Project(conn C, msg Message) error
	ProjectContext(ctx context.Context, conn C, msg Message) error
	ProjectMany(conn C, msgs []Message) error
	ProjectManyContext(ctx context.Context, conn C, msgs []Message) error
}
