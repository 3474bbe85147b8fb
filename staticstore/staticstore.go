// Package staticstore holds operator-declared services: entries with no
// TTL, injected out of band rather than announced by a live process. The
// query resource unions these with the dynamic store's live set.
package staticstore

import (
	"context"

	"svc-registry/registry"
)

// StaticStore is the read/write interface the query resource and an
// operator admin tool both use.
type StaticStore interface {
	// GetAll returns every statically declared service.
	GetAll(ctx context.Context) ([]registry.Service, error)

	// Put inserts or replaces the service identified by svc.ID.
	Put(ctx context.Context, svc registry.Service) error

	// Delete removes the service identified by id, if present.
	Delete(ctx context.Context, id registry.ServiceId) error
}
