// Command keyroute reads and writes records by hierarchical key.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jacentio/keyroute/internal/config"
	"github.com/jacentio/keyroute/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by subcommands.
type app struct {
	configPath string
	logLevel   string
	backend    string

	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
	store  *store.Store
}

// execute runs the CLI with args and closes the store even when the command fails.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if a.store != nil {
		if cerr := a.store.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keyroute",
		Short: "Store records under slash-delimited keys in a wide-column store",
		Long: `keyroute maps keys like "user/ryan/settings" onto a table ("user"), a partition
value ("ryan") and cluster columns ("settings"), creating tables on first use.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "keyroute.yaml", "Config file (missing file uses defaults)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "Backend: memory, sqlite, dynamodb (overrides config)")

	root.AddCommand(
		a.putCmd(),
		a.getCmd(),
		a.rmCmd(),
		a.schemaCmd(),
		a.createTableCmd(),
		a.smokeCmd(),
	)
	return root
}

// open loads configuration, builds the logger and connects the store.
func (a *app) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend.Kind = a.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logger, err = newLogger(a.errOut, cfg.LogLevel); err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := newBackend(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	s, err := store.New(backend, cfg.Config, store.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	a.store = s
	return nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	ll := &slog.LevelVar{}
	if err := ll.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})), nil
}
