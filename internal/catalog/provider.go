package catalog

import "context"

// Provider is the narrow seam through which the gateway obtains
// machine archetypes. This package defines the interface but does not
// implement it: loading a catalog from disk, a database, or a remote
// registry is an external concern left to the embedding application.
type Provider interface {
	Models(ctx context.Context) ([]Model, error)
	Model(ctx context.Context, id string) (Model, error)
}
