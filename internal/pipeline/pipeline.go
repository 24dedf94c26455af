package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/observability"
	"github.com/couchcryptid/census-microdata-etl/internal/schema"
)

// ErrAlreadyLoaded means the database already holds rows for the state.
var ErrAlreadyLoaded = errors.New("state already loaded")

// Fetcher retrieves the raw record set for a request URL.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (domain.RecordSet, error)
}

// Store is the relational destination.
type Store interface {
	IsLoaded(ctx context.Context, stateName string) (bool, error)
	Append(ctx context.Context, tables []domain.TableRows) (domain.LoadResult, error)
}

// FileWriter exports the flat record set.
type FileWriter interface {
	Write(stateName string, rs domain.RecordSet) (string, error)
}

// Publisher is the optional message sink.
type Publisher interface {
	Publish(ctx context.Context, stateName string, rs domain.RecordSet, keys domain.Keys) (int, error)
}

// Settings are the request and schema inputs of a run.
type Settings struct {
	BaseURL  string
	APIKey   string
	FieldMap domain.FieldMap
	// NewID generates correlation keys; nil uses random UUIDs.
	NewID func() string
}

// Phases of a run, reported by Status.
const (
	PhaseIdle      = "idle"
	PhasePlan      = "plan"
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
	PhaseExport    = "export"
	PhasePublish   = "publish"
	PhaseDone      = "done"
)

// Pipeline runs fetch, recode, split, load, export and publish for one state
// at a time. Steps run sequentially on the caller's goroutine.
type Pipeline struct {
	settings  Settings
	fetcher   Fetcher
	store     Store
	files     FileWriter
	publisher Publisher
	groups    []schema.Group
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu     sync.Mutex
	phase  string
	active string
}

// New creates a Pipeline with the given stages and observability.
func New(s Settings, f Fetcher, st Store, w FileWriter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		settings: s,
		fetcher:  f,
		store:    st,
		files:    w,
		groups:   schema.Groups(),
		logger:   logger,
		metrics:  metrics,
		phase:    PhaseIdle,
	}
}

// WithPublisher enables the message sink.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// Status reports the current phase and state, for the HTTP status endpoint.
func (p *Pipeline) Status() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]string{"phase": p.phase, "state": p.active}
}

func (p *Pipeline) enter(phase string) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// run is the state threaded through the steps of one Run.
type run struct {
	state   string
	query   string
	records domain.RecordSet
	keys    domain.Keys
	report  Report
}

// Run loads stateName. The returned error is non-nil when the run stopped
// early or any persistence step failed; the report always says what
// actually happened.
func (p *Pipeline) Run(ctx context.Context, stateName string) (report Report, err error) {
	r := &run{report: Report{State: stateName, StartedAt: domain.Now()}}
	p.mu.Lock()
	p.active = stateName
	p.mu.Unlock()
	defer func() {
		p.finish(r)
		report = r.report
	}()

	if err := p.plan(ctx, r); err != nil {
		return r.report, err
	}
	if err := p.extract(ctx, r); err != nil {
		return r.report, err
	}
	if err := p.transform(r); err != nil {
		return r.report, err
	}

	p.load(ctx, r)
	p.export(r)
	p.publish(ctx, r)

	p.logger.Info("run finished",
		"state", r.state,
		"records", r.report.Records,
		"load", r.report.Load.Status.String(),
		"rows", r.report.Load.Rows(),
		"csv", r.report.CSVPath,
		"published", r.report.Published,
	)
	return r.report, errors.Join(r.report.Load.Err, r.report.ExportErr, r.report.PublishErr)
}

func (p *Pipeline) finish(r *run) {
	r.report.FinishedAt = domain.Now()
	p.enter(PhaseDone)
	p.metrics.RunsTotal.WithLabelValues(r.report.Load.Status.String()).Inc()
	p.metrics.RunDuration.Observe(r.report.Duration().Seconds())
}

// plan resolves the state, refuses duplicates, and builds the request URL.
func (p *Pipeline) plan(ctx context.Context, r *run) error {
	p.enter(PhasePlan)
	code, ok := domain.StateCode(r.report.State)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownState, r.report.State)
	}
	r.state, _ = domain.StateName(code)
	r.report.State = r.state

	loaded, err := p.store.IsLoaded(ctx, r.state)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if loaded {
		p.logger.Info("state already loaded, skipping", "state", r.state)
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, r.state)
	}

	r.query, err = domain.BuildQuery(p.settings.BaseURL, p.settings.FieldMap.Names(), r.state, p.settings.APIKey)
	if err != nil {
		return err
	}
	r.report.Query = domain.RedactQuery(r.query)
	return nil
}

func (p *Pipeline) extract(ctx context.Context, r *run) error {
	p.enter(PhaseExtract)
	p.logger.Info("requesting census data", "state", r.state, "query", r.report.Query)

	rs, err := p.fetcher.Fetch(ctx, r.query)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", r.state, err)
	}
	r.records = rs
	r.report.Records = rs.Len()
	p.metrics.RecordsFetched.Add(float64(rs.Len()))
	return nil
}

// transform recodes on the raw API names, then renames positionally.
func (p *Pipeline) transform(r *run) error {
	p.enter(PhaseTransform)
	fm := p.settings.FieldMap.With(domain.StateField())

	unknown := domain.Relabel(&r.records, fm)
	r.report.UnknownCodes = unknown
	p.metrics.UnknownCodes.Add(float64(unknown))
	if unknown > 0 {
		p.logger.Debug("codes without labels kept as-is", "state", r.state, "cells", unknown)
	}

	if err := domain.RenameColumns(&r.records, schema.ReadableColumns()); err != nil {
		return err
	}
	return nil
}

// load splits both groups and appends them in one transaction.
func (p *Pipeline) load(ctx context.Context, r *run) {
	p.enter(PhaseLoad)
	fail := func(err error) {
		r.report.Load = LoadOutcome{Status: LoadFailed, Err: fmt.Errorf("load %s: %w", r.state, err)}
		p.metrics.LoadFailures.Inc()
		p.logger.Error("write to database failed", "state", r.state, "error", err)
	}

	keys, err := domain.NewKeys(r.records.Len(), p.settings.NewID)
	if err != nil {
		fail(err)
		return
	}
	r.keys = keys

	tables, err := domain.SplitAll(r.records, p.groups, keys)
	if err != nil {
		fail(err)
		return
	}

	res, err := p.store.Append(ctx, tables)
	if err != nil {
		fail(err)
		return
	}

	r.report.Load = LoadOutcome{Status: LoadSucceeded, Tables: res.Tables}
	for _, tc := range res.Tables {
		p.metrics.RowsWritten.WithLabelValues(tc.Table).Add(float64(tc.Rows))
	}
	p.logger.Info("write to database succeeded", "state", r.state, "tables", len(res.Tables), "rows", res.Total())
}

// export runs whatever the load outcome, so fetched data is never lost.
func (p *Pipeline) export(r *run) {
	p.enter(PhaseExport)
	path, err := p.files.Write(r.state, r.records)
	if err != nil {
		r.report.ExportErr = fmt.Errorf("export %s: %w", r.state, err)
		p.logger.Error("csv export failed", "state", r.state, "error", err)
		return
	}
	r.report.CSVPath = path
	p.metrics.ExportsWritten.Inc()
	p.logger.Info("csv written", "state", r.state, "path", path)
}

// publish only sends records whose correlation ids were committed.
func (p *Pipeline) publish(ctx context.Context, r *run) {
	if p.publisher == nil {
		return
	}
	r.report.PublishEnabled = true
	if r.report.Load.Status != LoadSucceeded {
		p.logger.Warn("publish skipped, load did not commit", "state", r.state)
		return
	}

	p.enter(PhasePublish)
	n, err := p.publisher.Publish(ctx, r.state, r.records, r.keys)
	r.report.Published = n
	p.metrics.MessagesPublished.Add(float64(n))
	if err != nil {
		r.report.PublishErr = fmt.Errorf("publish %s: %w", r.state, err)
		p.logger.Error("publish failed", "state", r.state, "published", n, "error", err)
	}
}
