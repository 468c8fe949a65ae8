package store_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/keyroute/store"
)

// stubBackend wraps MemoryBackend with call counting and injected failures.
type stubBackend struct {
	*store.MemoryBackend

	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error

	// selectRows, when set, replaces the Select result.
	selectRows []store.Row

	// beforeCreate runs before CreateTable reaches the memory backend.
	beforeCreate func(table string)
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		MemoryBackend: store.NewMemoryBackend(),
		calls:         make(map[string]int),
		errs:          make(map[string]error),
	}
}

func (b *stubBackend) fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[op] = err
}

func (b *stubBackend) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	return b.errs[op]
}

func (b *stubBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *stubBackend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for op, c := range b.calls {
		if op != "Connect" && op != "Close" {
			n += c
		}
	}
	return n
}

func (b *stubBackend) Connect(ctx context.Context) error {
	if err := b.record("Connect"); err != nil {
		return err
	}
	return b.MemoryBackend.Connect(ctx)
}

func (b *stubBackend) Close(ctx context.Context) error {
	if err := b.record("Close"); err != nil {
		return err
	}
	return b.MemoryBackend.Close(ctx)
}

func (b *stubBackend) TableSchema(ctx context.Context, table string) (store.Schema, error) {
	if err := b.record("TableSchema"); err != nil {
		return store.Schema{}, err
	}
	return b.MemoryBackend.TableSchema(ctx, table)
}

func (b *stubBackend) CreateTable(ctx context.Context, table string, schema store.Schema) error {
	if err := b.record("CreateTable"); err != nil {
		return err
	}
	if b.beforeCreate != nil {
		b.beforeCreate(table)
	}
	return b.MemoryBackend.CreateTable(ctx, table, schema)
}

func (b *stubBackend) Insert(ctx context.Context, table string, schema store.Schema, row store.Row) error {
	if err := b.record("Insert"); err != nil {
		return err
	}
	return b.MemoryBackend.Insert(ctx, table, schema, row)
}

func (b *stubBackend) Select(ctx context.Context, table string, schema store.Schema, key store.Row) ([]store.Row, error) {
	if err := b.record("Select"); err != nil {
		return nil, err
	}
	if b.selectRows != nil {
		return b.selectRows, nil
	}
	return b.MemoryBackend.Select(ctx, table, schema, key)
}

func (b *stubBackend) Delete(ctx context.Context, table string, schema store.Schema, key store.Row) error {
	if err := b.record("Delete"); err != nil {
		return err
	}
	return b.MemoryBackend.Delete(ctx, table, schema, key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Keyspace = "test"
	return cfg
}

// openStore creates and connects a Store over backend.
func openStore(t *testing.T, backend store.Backend, cfg store.Config, opts ...store.Option) *store.Store {
	t.Helper()
	opts = append([]store.Option{store.WithLogger(discardLogger())}, opts...)
	s, err := store.New(backend, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}
