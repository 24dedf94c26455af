package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/couchcryptid/census-microdata-etl/internal/adapter/census"
	"github.com/couchcryptid/census-microdata-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/census-microdata-etl/internal/adapter/fieldmap"
	httpadapter "github.com/couchcryptid/census-microdata-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/census-microdata-etl/internal/adapter/kafka"
	"github.com/couchcryptid/census-microdata-etl/internal/adapter/prompt"
	"github.com/couchcryptid/census-microdata-etl/internal/observability"
	"github.com/couchcryptid/census-microdata-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func newLoadCommand(a *app) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch, recode and store one state (the default command)",
		Long: `
Loads one state. Without --state the command asks for one interactively and
keeps asking until it gets a state that is not in the database yet; enter "q"
to quit.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return a.load(c.Context(), state)
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "state to load, e.g. \"new york\"; prompts when empty")
	return cmd
}

func (a *app) load(ctx context.Context, state string) error {
	cfg, logger := a.cfg, a.logger

	fm, err := fieldmap.Load(cfg.FieldMapPath)
	if err != nil {
		return err
	}
	logger.Info("field map loaded", "path", cfg.FieldMapPath, "fields", len(fm.Fields), "coded", fm.CodedCount())

	store, err := a.store()
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	if state == "" {
		state, err = prompt.New(a.stdin, a.stdout, store).Ask(ctx)
		switch {
		case errors.Is(err, prompt.ErrQuit):
			return nil
		case errors.Is(err, io.EOF):
			return errors.New("no state entered")
		case err != nil:
			return err
		}
	}

	reg := observability.NewRegistry()
	metrics := observability.NewMetrics(reg)

	p := pipeline.New(pipeline.Settings{
		BaseURL:  cfg.CensusBaseURL,
		APIKey:   cfg.CensusAPIKey,
		FieldMap: fm,
	},
		census.NewClient(cfg.CensusTimeout, metrics, logger),
		store,
		csvfile.NewWriter(cfg.OutputDir),
		logger,
		metrics,
	)

	if cfg.KafkaEnabled() {
		pub := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		p.WithPublisher(pub)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, store, p, reg, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	report, runErr := p.Run(ctx, state)
	if errors.Is(runErr, pipeline.ErrAlreadyLoaded) {
		fmt.Fprintf(a.stdout, "Data for %s is already in the database.\n", report.State)
		return nil
	}
	writeReport(a.stdout, report)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := observability.Push(pushCtx, cfg.PushgatewayURL, report.State, reg); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}
	return runErr
}
