// Package sqlite implements store.Backend on an embedded SQLite database
// using the pure-Go modernc.org/sqlite driver.
//
// Each keyroute table is a SQLite table whose primary key is the partition
// column followed by the cluster columns, plus a "data" column holding the
// payload. The layout is read back from PRAGMA table_info.
//
// SQLite compares table names case-insensitively, so keys under "User/x"
// and "user/x" land in the same table even though the schema cache holds
// them apart. Table names starting with "sqlite_" are reserved by SQLite
// and rejected with ErrReservedTable.
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jacentio/keyroute/store"
)

// ErrReservedTable is returned for table names SQLite keeps for itself.
var ErrReservedTable = errors.New("keyroute: table name uses the reserved sqlite_ prefix")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds configuration for the SQLite backend.
type Config struct {
	// Path is the database file, created if missing. Required.
	Path string
}

// Backend stores keyroute tables in SQLite.
type Backend struct {
	config Config
	logger *slog.Logger
	db     *sql.DB
}

var _ store.Backend = (*Backend)(nil)

// New creates a Backend. Connect opens the database.
func New(config Config, logger *slog.Logger) (*Backend, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("keyroute: sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{config: config, logger: logger}, nil
}

// Connect opens the database file, creating its directory if needed.
func (b *Backend) Connect(ctx context.Context) error {
	if b.config.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(b.config.Path), 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", b.config.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("configure database: %w", err)
	}
	b.db = db
	b.logger.Info("opened sqlite database", "path", b.config.Path)
	return nil
}

// Close closes the database.
func (b *Backend) Close(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

type pkColumn struct {
	name    string
	typ     string
	ordinal int
}

// TableSchema reads the primary key columns of table in key order.
func (b *Backend) TableSchema(ctx context.Context, table string) (store.Schema, error) {
	if err := checkTableName(table); err != nil {
		return store.Schema{}, err
	}
	rows, err := b.db.QueryContext(ctx, "SELECT name, type, pk FROM pragma_table_info(?)", table)
	if err != nil {
		return store.Schema{}, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	var found bool
	var keys []pkColumn
	for rows.Next() {
		var c pkColumn
		if err := rows.Scan(&c.name, &c.typ, &c.ordinal); err != nil {
			return store.Schema{}, fmt.Errorf("scan table info: %w", err)
		}
		found = true
		if c.ordinal > 0 {
			keys = append(keys, c)
		}
	}
	if err := rows.Err(); err != nil {
		return store.Schema{}, fmt.Errorf("read table info: %w", err)
	}
	if !found {
		return store.Schema{}, store.ErrTableNotFound
	}
	if len(keys) == 0 {
		return store.Schema{}, fmt.Errorf("table %q has no primary key", table)
	}
	slices.SortFunc(keys, func(a, b pkColumn) int { return cmp.Compare(a.ordinal, b.ordinal) })

	cols := make([]store.Column, 0, len(keys))
	for _, k := range keys {
		typ, err := store.ParseColumnType(strings.ToLower(k.typ))
		if err != nil {
			return store.Schema{}, fmt.Errorf("table %q column %q: %w", table, k.name, err)
		}
		cols = append(cols, store.Column{Name: k.name, Type: typ})
	}
	schema := store.Schema{Partition: cols[0], Cluster: cols[1:]}
	return schema, schema.Validate()
}

// CreateTable creates table unless it exists.
func (b *Backend) CreateTable(ctx context.Context, table string, schema store.Schema) error {
	if err := checkTableName(table); err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, createTableSQL(table, schema)); err != nil {
		return fmt.Errorf("create table %q: %w", table, err)
	}
	b.logger.Debug("ensured table", "table", table, "schema", schema.String())
	return nil
}

// Insert upserts row.
func (b *Backend) Insert(ctx context.Context, table string, schema store.Schema, row store.Row) error {
	cols := columnNames(schema)
	args := make([]any, 0, len(cols)+1)
	for _, v := range row.KeyValues(schema) {
		args = append(args, v)
	}
	args = append(args, row[store.PayloadColumn])

	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s",
		quoteIdent(table),
		joinIdents(cols), quoteIdent(store.PayloadColumn),
		placeholders(len(args)),
		joinIdents(cols),
		quoteIdent(store.PayloadColumn), quoteIdent(store.PayloadColumn),
	)
	_, err := b.db.ExecContext(ctx, query, args...)
	return err
}

// Select returns rows whose columns equal every key column present in key.
func (b *Backend) Select(ctx context.Context, table string, schema store.Schema, key store.Row) ([]store.Row, error) {
	cols := columnNames(schema)
	where, args := predicate(schema, key)
	query := fmt.Sprintf("SELECT %s, %s FROM %s%s",
		joinIdents(cols), quoteIdent(store.PayloadColumn), quoteIdent(table), where)

	rs, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []store.Row
	for rs.Next() {
		vals := make([]sql.NullString, len(cols)+1)
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(store.Row, len(vals))
		for i, col := range cols {
			row[col] = vals[i].String
		}
		if payload := vals[len(cols)]; payload.Valid {
			row[store.PayloadColumn] = payload.String
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// Delete removes rows matching key.
func (b *Backend) Delete(ctx context.Context, table string, schema store.Schema, key store.Row) error {
	where, args := predicate(schema, key)
	_, err := b.db.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)+where, args...)
	return err
}

func createTableSQL(table string, schema store.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", quoteIdent(table))
	for _, col := range schema.Columns() {
		fmt.Fprintf(&b, "%s %s NOT NULL, ", quoteIdent(col.Name), col.Type)
	}
	fmt.Fprintf(&b, "%s TEXT, PRIMARY KEY (%s))", quoteIdent(store.PayloadColumn), joinIdents(columnNames(schema)))
	return b.String()
}

// predicate builds an equality WHERE clause over the key columns present in key.
func predicate(schema store.Schema, key store.Row) (string, []any) {
	var conds []string
	var args []any
	for _, col := range schema.Columns() {
		v, ok := key[col.Name]
		if !ok {
			continue
		}
		conds = append(conds, quoteIdent(col.Name)+" = ?")
		args = append(args, v)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func columnNames(schema store.Schema) []string {
	cols := schema.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func checkTableName(table string) error {
	if strings.HasPrefix(strings.ToLower(table), "sqlite_") {
		return fmt.Errorf("%w: %q", ErrReservedTable, table)
	}
	return nil
}
