package csvtable

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/census-forecast/internal/domain"
)

// Writer writes the full forecast table, history included, to a CSV file.
// It implements pipeline.Loader.
type Writer struct {
	path    string
	catalog domain.Catalog
	logger  *slog.Logger
}

// NewWriter creates a Writer for the file at path.
func NewWriter(path string, catalog domain.Catalog, logger *slog.Logger) *Writer {
	return &Writer{path: path, catalog: catalog, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "csv" }

// Load replaces the output file with f's table. The file is written to a
// temporary sibling first and renamed into place.
func (w *Writer) Load(ctx context.Context, f domain.Forecast) error {
	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("create forecast csv: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := Encode(ctx, tmp, w.catalog, f.Table.Rows()); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close forecast csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("rename forecast csv: %w", err)
	}
	w.logger.Info("forecast csv written", "path", w.path, "rows", f.Table.Len(), "run_id", f.RunID)
	return nil
}

// Encode writes rows to dst in the layout described by Header.
func Encode(ctx context.Context, dst io.Writer, catalog domain.Catalog, rows []domain.Observation) error {
	cw := csv.NewWriter(dst)
	if err := cw.Write(Header(catalog)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(record(catalog, o)); err != nil {
			return fmt.Errorf("write row %d: %w", o.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush forecast csv: %w", err)
	}
	return nil
}

func record(catalog domain.Catalog, o domain.Observation) []string {
	rec := make([]string, 0, len(scalarColumns)+len(catalog.Species)+len(catalog.Strata))
	rec = append(rec,
		strconv.FormatInt(o.ID, 10),
		strconv.Itoa(o.SurveyYear),
		strconv.Itoa(o.Month),
		strconv.Itoa(o.Day),
		strconv.Itoa(o.TimeOfDay),
		strconv.Itoa(o.AircraftType),
		formatTarget(o.Latitude),
		formatTarget(o.Longitude),
		formatTarget(o.Count),
		formatFloat(o.LatLag1),
		formatFloat(o.LonLag1),
		formatFloat(o.CountLag1),
		formatFloat(o.LatLag2),
		formatFloat(o.LonLag2),
		formatFloat(o.CountLag2),
	)
	for _, s := range catalog.Species {
		rec = append(rec, indicator(s == o.Species))
	}
	for _, s := range catalog.Strata {
		rec = append(rec, indicator(s == o.Stratum))
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTarget(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func indicator(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
