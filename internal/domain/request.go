package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrUnknownState means a state name has no FIPS code.
	ErrUnknownState = errors.New("unknown state")
	// ErrNoFields means the field map requested nothing.
	ErrNoFields = errors.New("field map has no fields")
	// ErrMissingAPIKey means no Census API key was configured.
	ErrMissingAPIKey = errors.New("census API key is not set")
)

var keyParamRe = regexp.MustCompile(`([?&]key=)[^&]*`)

// BuildQuery assembles the PUMS request URL:
//
//	<base>?get=F1,F2,...&for=state:<fips>&key=<apiKey>
//
// The field list is sent as-is so the response columns come back in field
// map order.
func BuildQuery(base string, fields []string, stateName, apiKey string) (string, error) {
	if len(fields) == 0 {
		return "", ErrNoFields
	}
	code, ok := StateCode(stateName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, stateName)
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "?"))
	b.WriteString("?get=")
	b.WriteString(strings.Join(fields, ","))
	b.WriteString("&for=state:")
	b.WriteString(code)
	b.WriteString("&key=")
	b.WriteString(url.QueryEscape(apiKey))
	return b.String(), nil
}

// RedactQuery masks the API key in a request URL for logs and reports.
func RedactQuery(query string) string {
	return keyParamRe.ReplaceAllString(query, "${1}REDACTED")
}
