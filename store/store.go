package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacentio/keyroute/internal/keypath"
)

// Store routes hierarchical keys to backend tables.
type Store struct {
	backend  Backend
	config   Config
	cache    *SchemaCache
	registry *Registry
	resolver *Resolver
	logger   *slog.Logger
	life     *lifecycle
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSchemaCache injects the schema cache, e.g. to inspect it in tests.
func WithSchemaCache(cache *SchemaCache) Option {
	return func(s *Store) { s.cache = cache }
}

// WithRegistry injects the per-table column spec registry.
// Config.Tables are registered into it.
func WithRegistry(registry *Registry) Option {
	return func(s *Store) { s.registry = registry }
}

// New creates a Store in the connecting state. Call Connect before use.
func New(backend Backend, config Config, opts ...Option) (*Store, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	s := &Store{
		backend: backend,
		config:  config,
		life:    newLifecycle(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil {
		s.cache = NewSchemaCache()
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	for table, spec := range config.Tables {
		if err := s.registry.Register(table, spec); err != nil {
			return nil, err
		}
	}
	s.resolver = NewResolver(backend, s.cache, s.registry, config.DefaultColumns, s.logger)
	return s, nil
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Cache returns the schema cache.
func (s *Store) Cache() *SchemaCache {
	return s.cache
}

// Connect connects the backend and moves the store to StateReady.
// On failure the store moves to StateFailed, the backend is released and the
// store cannot be reused.
func (s *Store) Connect(ctx context.Context) error {
	if state, _ := s.life.current(); state != StateConnecting {
		return fmt.Errorf("%w: connect in state %s", ErrClosed, state)
	}
	s.logger.Info("connecting", "keyspace", s.config.Keyspace)
	if err := s.backend.Connect(ctx); err != nil {
		s.logger.Error("connection failed", "keyspace", s.config.Keyspace, "error", err)
		_ = s.life.transition(StateFailed, err)
		if cerr := s.backend.Close(ctx); cerr != nil {
			s.logger.Warn("release after failed connect", "error", cerr)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if err := s.life.transition(StateReady, nil); err != nil {
		return err
	}
	s.logger.Info("connected", "keyspace", s.config.Keyspace)
	return nil
}

// Close shuts the backend down. Closing a closed or failed store is a no-op.
func (s *Store) Close(ctx context.Context) error {
	if state, _ := s.life.current(); state.Terminal() || state == StateClosing {
		return nil
	}
	if err := s.life.transition(StateClosing, nil); err != nil {
		return err
	}
	s.logger.Info("shutting down", "keyspace", s.config.Keyspace)
	err := s.backend.Close(ctx)
	if terr := s.life.transition(StateClosed, nil); terr != nil {
		return terr
	}
	return err
}

// State returns the current connection state.
func (s *Store) State() State {
	state, _ := s.life.current()
	return state
}

// Err returns the connection error after a failed Connect.
func (s *Store) Err() error {
	_, err := s.life.current()
	return err
}

// Ready is closed once the store reaches StateReady.
func (s *Store) Ready() <-chan struct{} {
	return s.life.ready
}

// Subscribe returns a channel of state changes and a func to stop receiving.
// The channel is closed after a terminal state or on cancel.
func (s *Store) Subscribe() (<-chan StateChange, func()) {
	return s.life.subscribe()
}

// Schema resolves the schema for table, creating the table if needed.
func (s *Store) Schema(ctx context.Context, table string) (Schema, error) {
	if err := s.checkReady(); err != nil {
		return Schema{}, err
	}
	if !keypath.ValidSegment(table) {
		return Schema{}, fmt.Errorf("%w: invalid table name %q", ErrInvalidKey, table)
	}
	return s.resolver.Resolve(ctx, table)
}

// CreateTable creates table with a caller-supplied column spec and caches its schema.
func (s *Store) CreateTable(ctx context.Context, table string, spec ColumnSpec) (Schema, error) {
	if err := s.checkReady(); err != nil {
		return Schema{}, err
	}
	if !keypath.ValidSegment(table) {
		return Schema{}, fmt.Errorf("%w: invalid table name %q", ErrInvalidKey, table)
	}
	return s.resolver.Provision(ctx, table, spec)
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrInvalidValue, key, err)
	}
	k, schema, row, err := s.locate(ctx, key)
	if err != nil {
		return err
	}
	row[PayloadColumn] = string(data)
	if err := s.backend.Insert(ctx, k.Table, schema, row); err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrStoreWriteFailed, key, err)
	}
	return nil
}

// Fetch returns the serialized value stored under key.
// A missing record is not an error: Fetch returns nil, nil.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	k, schema, row, err := s.locate(ctx, key)
	if err != nil {
		return nil, err
	}
	rows, err := s.backend.Select(ctx, k.Table, schema, row)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %w", ErrStoreReadFailed, key, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		payload, ok := rows[0][PayloadColumn]
		if !ok || payload == "" {
			return nil, fmt.Errorf("%w: key %q: row has no %s column", ErrStoreReadFailed, key, PayloadColumn)
		}
		return []byte(payload), nil
	default:
		s.logger.Error("key matched more than one row", "key", key, "table", k.Table, "rows", len(rows))
		return nil, fmt.Errorf("%w: %q matched %d rows", ErrMultipleRecordsFound, key, len(rows))
	}
}

// FetchInto decodes the value stored under key into v.
// It reports false, with v untouched, if no record exists.
func (s *Store) FetchInto(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.Fetch(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: key %q: decode: %w", ErrStoreReadFailed, key, err)
	}
	return true, nil
}

// Remove deletes the record under key. Removing a missing record is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	k, schema, row, err := s.locate(ctx, key)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, k.Table, schema, row); err != nil {
		return fmt.Errorf("%w: key %q: %w", ErrStoreDeleteFailed, key, err)
	}
	return nil
}

// locate parses key, resolves its table and binds the key columns.
// Parse errors surface before any backend call.
func (s *Store) locate(ctx context.Context, key string) (keypath.Key, Schema, Row, error) {
	k, err := keypath.Parse(key, s.config.DefaultTable)
	if err != nil {
		return keypath.Key{}, Schema{}, nil, err
	}
	schema, err := s.resolver.Resolve(ctx, k.Table)
	if err != nil {
		return keypath.Key{}, Schema{}, nil, err
	}
	row, err := Bind(k, schema, s.config.Overflow)
	if err != nil {
		return keypath.Key{}, Schema{}, nil, err
	}
	return k, schema, row, nil
}

func (s *Store) checkReady() error {
	state, err := s.life.current()
	switch state {
	case StateReady:
		return nil
	case StateConnecting:
		return ErrNotReady
	case StateFailed:
		return errors.Join(ErrClosed, err)
	}
	return ErrClosed
}
