package machine

import "context"

// Store is the narrow seam through which the gateway persists
// user-configured machines. This package defines the interface but
// does not implement it: a JSON file, a database, or an in-memory
// store for tests is an external concern left to the embedding
// application.
type Store interface {
	List(ctx context.Context) ([]SavedMachine, error)
	Get(ctx context.Context, id string) (SavedMachine, error)
	Save(ctx context.Context, m SavedMachine) error
	Delete(ctx context.Context, id string) error
}
