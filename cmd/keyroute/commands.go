package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jacentio/keyroute/store"
)

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY JSON",
		Short: "Store a JSON value under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("value is not valid JSON: %s", args[1])
			}
			return a.store.Put(cmd.Context(), args[0], json.RawMessage(args[1]))
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.store.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("no record at %q", args[0])
			}
			_, err = fmt.Fprintln(a.out, string(data))
			return err
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Remove the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Remove(cmd.Context(), args[0])
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema TABLE",
		Short: "Print the key columns of TABLE, creating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.store.Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, schema.String())
			return err
		},
	}
}

func (a *app) createTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-table TABLE COLUMN[:TYPE]...",
		Short: "Create TABLE with explicit key columns",
		Long: `Create TABLE. The first column is the partition column, the rest are cluster
columns in order. Types are text (default), int, bigint and uuid.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec store.ColumnSpec
			for _, raw := range args[1:] {
				col, err := store.ParseColumn(raw)
				if err != nil {
					return err
				}
				spec.Columns = append(spec.Columns, col)
			}
			schema, err := a.store.CreateTable(cmd.Context(), args[0], spec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, schema.String())
			return err
		},
	}
}

func (a *app) smokeCmd() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Write, read back and remove a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := table + "/" + uuid.NewString() + "/settings/app2"
			want := []byte(`{"val1":1,"val2":33}`)

			if err := a.store.Put(ctx, key, json.RawMessage(want)); err != nil {
				return fmt.Errorf("put: %w", err)
			}
			got, err := a.store.Fetch(ctx, key)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}
			if !bytes.Equal(got, want) {
				return fmt.Errorf("fetch %q: expected %s, got %s", key, want, got)
			}
			if err := a.store.Remove(ctx, key); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			if got, err = a.store.Fetch(ctx, key); err != nil || got != nil {
				return fmt.Errorf("fetch after remove %q: got %s, %v", key, got, err)
			}
			a.logger.Info("smoke test passed", "key", key)
			_, err = fmt.Fprintln(a.out, "ok")
			return err
		},
	}
	cmd.Flags().StringVar(&table, "table", "keyroute_smoke", "Table to write to")
	return cmd
}
