// Package csvfile exports a recoded record set as a flat CSV file.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
)

// Writer writes one file per state into Dir.
type Writer struct {
	Dir string
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Path returns the file a state's export is written to.
func (w *Writer) Path(stateName string) string {
	name := strings.Join(strings.Fields(strings.ToLower(stateName)), " ")
	return filepath.Join(w.Dir, name+"_census.csv")
}

// Write writes the header row and every data row, replacing any earlier
// export for the same state. It returns the file path.
func (w *Writer) Write(stateName string, rs domain.RecordSet) (string, error) {
	if strings.TrimSpace(stateName) == "" {
		return "", errors.New("csv export: empty state name")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := w.Path(stateName)
	tmp, err := os.CreateTemp(w.Dir, ".census-*.csv")
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	cw := csv.NewWriter(tmp)
	if err := cw.Write(rs.Columns); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rs.Rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move csv into place: %w", err)
	}
	return path, nil
}
