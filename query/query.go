// Package query composes the dynamic and static stores into the registry's
// single read surface: the set of live services, dynamic and static
// alike, tagged with the registry's configured environment.
package query

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	regchannel "svc-registry/channel"
	"svc-registry/registry"
	"svc-registry/staticstore"
)

// DynamicGetter is the subset of dynamicstore.Store the query resource
// needs, kept as an interface so it can be faked in tests without a Redis
// dependency.
type DynamicGetter interface {
	GetAll(ctx context.Context) ([]registry.Service, error)
	Get(ctx context.Context, serviceType string) ([]registry.Service, error)
	GetByPool(ctx context.Context, serviceType, pool string) ([]registry.Service, error)
}

// Resource is the query-side facade over dynamic + static services.
type Resource struct {
	dynamic     DynamicGetter
	static      staticstore.StaticStore
	environment string
}

// New builds a Resource tagging every response with environment.
func New(dynamic DynamicGetter, static staticstore.StaticStore, environment string) *Resource {
	return &Resource{dynamic: dynamic, static: static, environment: environment}
}

// fetchResult carries one collaborator's services or the error it failed
// with, passed over the fan-in channel fetch uses.
type fetchResult struct {
	services []registry.Service
	err      error
}

// GetAll returns every live service, dynamic and static, tagged with the
// configured environment.
func (r *Resource) GetAll(ctx context.Context) (registry.Services, error) {
	return r.fetch(ctx, r.dynamic.GetAll, r.static.GetAll)
}

// Get returns every live service of the given type, dynamic and static.
func (r *Resource) Get(ctx context.Context, serviceType string) (registry.Services, error) {
	return r.fetch(ctx,
		func(ctx context.Context) ([]registry.Service, error) { return r.dynamic.Get(ctx, serviceType) },
		func(ctx context.Context) ([]registry.Service, error) { return filterStatic(ctx, r.static, serviceType, "") },
	)
}

// GetByPool returns every live service of the given type within pool,
// dynamic and static.
func (r *Resource) GetByPool(ctx context.Context, serviceType, pool string) (registry.Services, error) {
	return r.fetch(ctx,
		func(ctx context.Context) ([]registry.Service, error) { return r.dynamic.GetByPool(ctx, serviceType, pool) },
		func(ctx context.Context) ([]registry.Service, error) { return filterStatic(ctx, r.static, serviceType, pool) },
	)
}

func filterStatic(ctx context.Context, static staticstore.StaticStore, serviceType, pool string) ([]registry.Service, error) {
	all, err := static.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]registry.Service, 0, len(all))
	for _, svc := range all {
		if svc.Type != serviceType {
			continue
		}
		if pool != "" && svc.Pool != pool {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

// fetch runs dynamicFn and staticFn concurrently, since neither depends on
// the other's result, and folds their output into one Services response.
// The fan-in channel is wired through channel.OrDone so a cancelled ctx
// unblocks the wait immediately instead of leaking until both goroutines
// happen to finish.
func (r *Resource) fetch(ctx context.Context, dynamicFn, staticFn func(context.Context) ([]registry.Service, error)) (registry.Services, error) {
	resultsCh := make(chan fetchResult, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		services, err := dynamicFn(ctx)
		resultsCh <- fetchResult{services: services, err: err}
	}()
	go func() {
		defer wg.Done()
		services, err := staticFn(ctx)
		resultsCh <- fetchResult{services: services, err: err}
	}()
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var (
		combined []registry.Service
		firstErr error
	)
	for v := range regchannel.OrDone(ctx, resultsCh) {
		if v.err != nil {
			if firstErr == nil {
				firstErr = v.err
			}
			continue
		}
		combined = append(combined, v.services...)
	}

	if err := ctx.Err(); err != nil {
		return registry.Services{}, err
	}
	if firstErr != nil {
		return registry.Services{}, errors.Wrap(firstErr, "query: fetch services")
	}

	return registry.Services{Environment: r.environment, Services: combined}, nil
}
