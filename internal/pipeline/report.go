package pipeline

import (
	"time"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
)

// LoadStatus is the outcome of the database step of a run.
type LoadStatus int

const (
	// LoadSkipped means no load was attempted.
	LoadSkipped LoadStatus = iota
	// LoadSucceeded means every sub-table was committed.
	LoadSucceeded
	// LoadFailed means the transaction was rolled back or never started.
	LoadFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadSucceeded:
		return "succeeded"
	case LoadFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// LoadOutcome reports what the database step did. Tables is only set when
// Status is LoadSucceeded.
type LoadOutcome struct {
	Status LoadStatus
	Tables []domain.TableCount
	Err    error
}

// Rows returns the number of committed rows.
func (o LoadOutcome) Rows() int {
	return domain.LoadResult{Tables: o.Tables}.Total()
}

// Report is the truthful account of one run.
type Report struct {
	State string
	// Query is the request URL with the API key redacted.
	Query        string
	Records      int
	UnknownCodes int

	Load LoadOutcome

	CSVPath   string
	ExportErr error

	PublishEnabled bool
	Published      int
	PublishErr     error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Exported reports whether the CSV file was written.
func (r Report) Exported() bool {
	return r.CSVPath != "" && r.ExportErr == nil
}
