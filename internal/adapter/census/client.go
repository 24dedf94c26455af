// Package census fetches PUMS microdata from the Census Bureau data API.
package census

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"github.com/couchcryptid/census-microdata-etl/internal/observability"
)

var (
	// ErrEmptyResponse means the API answered but returned no records,
	// which it does with 204 when a query matches nothing.
	ErrEmptyResponse = errors.New("census API returned no records")
	// ErrMalformedResponse means the body is not a header row followed by
	// rows of the same width.
	ErrMalformedResponse = errors.New("malformed census API response")
)

// maxErrorBody bounds how much of a failed response is quoted in the error.
const maxErrorBody = 512

// Client issues a single GET per fetch. It does not retry.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Census API client. metrics may be nil.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch requests query and decodes the positional JSON body. The first row
// names the columns; every value is returned as text, null as "".
func (c *Client) Fetch(ctx context.Context, query string) (domain.RecordSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("create request: %w", redact(err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("census request: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return domain.RecordSet{}, ErrEmptyResponse
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.RecordSet{}, fmt.Errorf("census API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("read response: %w", err)
	}
	rs, err := decode(body)
	if err != nil {
		return domain.RecordSet{}, err
	}

	c.logger.Debug("census response decoded",
		"query", domain.RedactQuery(query),
		"columns", len(rs.Columns),
		"records", rs.Len(),
		"bytes", len(body),
	)
	return rs, nil
}

func decode(body []byte) (domain.RecordSet, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.RecordSet{}, ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return domain.RecordSet{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(raw) == 0 {
		return domain.RecordSet{}, fmt.Errorf("%w: missing header row", ErrMalformedResponse)
	}
	if len(raw) == 1 {
		return domain.RecordSet{}, ErrEmptyResponse
	}

	header := make([]string, len(raw[0]))
	for i, v := range raw[0] {
		name, ok := v.(string)
		if !ok || name == "" {
			return domain.RecordSet{}, fmt.Errorf("%w: header column %d is not a name", ErrMalformedResponse, i)
		}
		header[i] = name
	}

	rows := make([][]string, len(raw)-1)
	for r, values := range raw[1:] {
		if len(values) != len(header) {
			return domain.RecordSet{}, fmt.Errorf("%w: row %d has %d values, header has %d",
				ErrMalformedResponse, r+1, len(values), len(header))
		}
		row := make([]string, len(values))
		for i, v := range values {
			s, err := text(v)
			if err != nil {
				return domain.RecordSet{}, fmt.Errorf("%w: row %d column %s: %w", ErrMalformedResponse, r+1, header[i], err)
			}
			row[i] = s
		}
		rows[r] = row
	}
	return domain.RecordSet{Columns: header, Rows: rows}, nil
}

func text(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unexpected %T value", v)
	}
}

// redact strips the API key from URLs embedded in transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = domain.RedactQuery(ue.URL)
	}
	return err
}
