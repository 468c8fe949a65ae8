package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Provisioner creates tables on the backend.
type Provisioner struct {
	backend Backend
	logger  *slog.Logger
}

// NewProvisioner creates a Provisioner for backend.
func NewProvisioner(backend Backend, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{backend: backend, logger: logger}
}

// Provision creates table with spec if it does not exist and returns the
// table's schema as read back from the catalog. If the table already exists
// with a different layout, Provision fails with ErrProvisioningFailed rather
// than picking one of the two.
func (p *Provisioner) Provision(ctx context.Context, table string, spec ColumnSpec) (Schema, error) {
	want, err := spec.Schema()
	if err != nil {
		return Schema{}, fmt.Errorf("%w: table %q: %w", ErrProvisioningFailed, table, err)
	}

	if err := p.backend.CreateTable(ctx, table, want); err != nil {
		p.logger.Error("create table failed", "table", table, "schema", want.String(), "error", err)
		return Schema{}, fmt.Errorf("%w: table %q: %w", ErrProvisioningFailed, table, err)
	}

	got, err := p.backend.TableSchema(ctx, table)
	if err != nil {
		return Schema{}, fmt.Errorf("%w: table %q: read back: %w", ErrProvisioningFailed, table, err)
	}
	if !got.Equal(want) {
		p.logger.Warn("table exists with a different layout",
			"table", table,
			"want", want.String(),
			"got", got.String(),
		)
		return Schema{}, fmt.Errorf("%w: table %q exists as %s, wanted %s",
			ErrProvisioningFailed, table, got, want)
	}

	p.logger.Info("provisioned table", "table", table, "schema", got.String())
	return got, nil
}
