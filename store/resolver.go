package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Resolver returns table schemas, consulting the cache, then the catalog,
// and creating missing tables.
type Resolver struct {
	backend     Backend
	cache       *SchemaCache
	provisioner *Provisioner
	registry    *Registry
	defaultSpec ColumnSpec
	logger      *slog.Logger

	// group collapses concurrent first-time resolutions of the same table.
	group singleflight.Group
}

// NewResolver creates a Resolver. registry may be nil.
func NewResolver(backend Backend, cache *SchemaCache, registry *Registry, defaultSpec ColumnSpec, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{
		backend:     backend,
		cache:       cache,
		provisioner: NewProvisioner(backend, logger),
		registry:    registry,
		defaultSpec: defaultSpec,
		logger:      logger,
	}
}

// Resolve returns the schema for table. Cached schemas are returned without
// I/O. Failures are not cached; the next call retries from scratch.
func (r *Resolver) Resolve(ctx context.Context, table string) (Schema, error) {
	if s, ok := r.cache.Lookup(table); ok {
		return s, nil
	}

	// The shared call must not be cut short by whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(table, func() (any, error) {
		return r.resolve(shared, table)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Schema{}, res.Err
		}
		return res.Val.(Schema), nil
	case <-ctx.Done():
		return Schema{}, ctx.Err()
	}
}

// Provision creates table with spec and caches the result. It fails if the
// cache already holds a different schema for table.
func (r *Resolver) Provision(ctx context.Context, table string, spec ColumnSpec) (Schema, error) {
	created, err := r.provisioner.Provision(ctx, table, spec)
	if err != nil {
		return Schema{}, err
	}
	if cached := r.cache.Store(table, created); !cached.Equal(created) {
		return Schema{}, fmt.Errorf("%w: table %q is cached as %s", ErrProvisioningFailed, table, cached)
	}
	return created, nil
}

func (r *Resolver) resolve(ctx context.Context, table string) (Schema, error) {
	if s, ok := r.cache.Lookup(table); ok {
		return s, nil
	}

	schema, err := r.backend.TableSchema(ctx, table)
	switch {
	case err == nil:
		if err := schema.Validate(); err != nil {
			return Schema{}, fmt.Errorf("%w: table %q: %w", ErrCatalogUnavailable, table, err)
		}
		r.logger.Debug("loaded table schema", "table", table, "schema", schema.String())
		return r.cache.Store(table, schema), nil

	case errors.Is(err, ErrTableNotFound):
		spec := r.defaultSpec
		if s, ok := r.registry.SpecFor(table); ok {
			spec = s
		}
		created, err := r.provisioner.Provision(ctx, table, spec)
		if err != nil {
			return Schema{}, err
		}
		return r.cache.Store(table, created), nil

	default:
		r.logger.Warn("catalog lookup failed", "table", table, "error", err)
		return Schema{}, fmt.Errorf("%w: table %q: %w", ErrCatalogUnavailable, table, err)
	}
}
