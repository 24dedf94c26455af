package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name used for every run.
const PushJob = "census_etl"

// Push sends the gatherer's metrics to a Pushgateway, grouped by state.
// A one-shot CLI run exits before any scrape could happen, so this is how
// its metrics reach Prometheus.
func Push(ctx context.Context, url, state string, g prometheus.Gatherer) error {
	p := push.New(url, PushJob).Gatherer(g)
	if state != "" {
		p = p.Grouping("state", state)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
