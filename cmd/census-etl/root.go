package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/census-microdata-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/census-microdata-etl/internal/config"
	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/observability"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) store() (*sqlstore.Store, error) {
	return sqlstore.New(a.cfg.DBDriver, a.cfg.DatabaseURL, a.logger)
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout}

	root := &cobra.Command{
		Use:   "census-etl",
		Short: "Load ACS PUMS microdata for a state",
		Long: `
Fetches 2022 ACS 1-year PUMS person records for one state from the Census API,
replaces coded values with labels, splits each record into individual and
household tables correlated by generated ids, appends them to the database in
one transaction, and writes the flat result to a CSV file.

Configuration comes from environment variables; DATABASE_URL is required.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg)
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	load := newLoadCommand(a)
	root.RunE = load.RunE
	root.Flags().AddFlagSet(load.Flags())

	root.AddCommand(
		load,
		newStatesCommand(a),
		newCheckCommand(a),
		newMigrateCommand(a),
	)
	return root
}

func newStatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List states and whether each is already loaded",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			if err := st.Migrate(c.Context()); err != nil {
				return err
			}
			loaded, err := st.LoadedStates(c.Context())
			if err != nil {
				return err
			}
			writeStates(a.stdout, loaded)
			return nil
		},
	}
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <state>",
		Short: "Report whether a state is already in the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			code, ok := domain.StateCode(name)
			if !ok {
				return fmt.Errorf("%w: %q", domain.ErrUnknownState, name)
			}
			canonical, _ := domain.StateName(code)

			st, err := a.store()
			if err != nil {
				return err
			}
			if err := st.Migrate(c.Context()); err != nil {
				return err
			}
			loaded, err := st.IsLoaded(c.Context(), canonical)
			if err != nil {
				return err
			}
			if loaded {
				fmt.Fprintf(a.stdout, "Data for %s is already in the database.\n", canonical)
				return nil
			}
			fmt.Fprintf(a.stdout, "Data for %s is not in the database.\n", canonical)
			return nil
		},
	}
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}
			if err := st.Migrate(c.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Schema ready (%s).\n", st.Driver())
			return nil
		},
	}
}

func writeStates(w io.Writer, loaded []string) {
	isLoaded := make(map[string]bool, len(loaded))
	for _, s := range loaded {
		isLoaded[strings.ToLower(s)] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"State", "FIPS", "Loaded"})
	for _, name := range domain.StateNames() {
		code, _ := domain.StateCode(name)
		mark := ""
		if isLoaded[strings.ToLower(name)] {
			mark = "yes"
		}
		t.AppendRow(table.Row{name, code, mark})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d of %d", len(isLoaded), len(domain.StateNames()))})
	t.Render()
}
