package incidents

import "context"

// Store persists incident records. Put replaces the whole record; concurrent
// writers race with last-writer-wins semantics, which the product accepts.
type Store interface {
	Create(ctx context.Context, inc Incident) error
	Get(ctx context.Context, id string) (Incident, error)
	Put(ctx context.Context, inc Incident) error
	List(ctx context.Context) ([]Incident, error)
}
