// Package postgres stores synthetic observations in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Table receives one row per synthetic observation per run.
const Table = "census_forecast_observations"

const schema = `
CREATE TABLE IF NOT EXISTS ` + Table + ` (
	run_id        UUID             NOT NULL,
	generated_at  TIMESTAMPTZ      NOT NULL,
	id            BIGINT           NOT NULL,
	survey_year   INTEGER          NOT NULL,
	month         SMALLINT         NOT NULL,
	day           SMALLINT         NOT NULL,
	time_of_day   INTEGER          NOT NULL,
	aircraft_type SMALLINT         NOT NULL,
	species       TEXT             NOT NULL,
	stratum       TEXT             NOT NULL,
	count         DOUBLE PRECISION,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	lat_lag1      DOUBLE PRECISION NOT NULL,
	lon_lag1      DOUBLE PRECISION NOT NULL,
	count_lag1    DOUBLE PRECISION NOT NULL,
	lat_lag2      DOUBLE PRECISION NOT NULL,
	lon_lag2      DOUBLE PRECISION NOT NULL,
	count_lag2    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, id)
);
CREATE INDEX IF NOT EXISTS idx_census_forecast_year ON ` + Table + ` (survey_year, month);`

var columns = []string{
	"run_id", "generated_at", "id", "survey_year", "month", "day",
	"time_of_day", "aircraft_type", "species", "stratum",
	"count", "latitude", "longitude",
	"lat_lag1", "lon_lag1", "count_lag1", "lat_lag2", "lon_lag2", "count_lag2",
}

// conn is the subset of *pgxpool.Pool used by Writer.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// Writer bulk-copies synthetic rows into Table.
// It implements pipeline.Loader.
type Writer struct {
	conn   conn
	close  func()
	logger *slog.Logger
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Writer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Writer{conn: pool, close: pool.Close, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "postgres" }

// EnsureSchema creates Table and its index when missing.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

// Load copies every synthetic row of f, tagged with the run id.
func (w *Writer) Load(ctx context.Context, f domain.Forecast) error {
	rows := f.Synthetic()
	if len(rows) == 0 {
		return nil
	}
	n, err := w.conn.CopyFrom(ctx, pgx.Identifier{Table}, columns, pgx.CopyFromRows(copyRows(f.RunID, f.GeneratedAt, rows)))
	if err != nil {
		return fmt.Errorf("copy forecast rows: %w", err)
	}
	w.logger.Debug("forecast stored", "rows", n, "run_id", f.RunID)
	return nil
}

// Close releases the pool.
func (w *Writer) Close() {
	if w.close != nil {
		w.close()
	}
}

func copyRows(runID string, generatedAt time.Time, rows []domain.Observation) [][]any {
	out := make([][]any, len(rows))
	for i, o := range rows {
		out[i] = []any{
			runID, generatedAt, o.ID, o.SurveyYear, o.Month, o.Day,
			o.TimeOfDay, o.AircraftType, o.Species, o.Stratum,
			o.Count, o.Latitude, o.Longitude,
			o.LatLag1, o.LonLag1, o.CountLag1, o.LatLag2, o.LonLag2, o.CountLag2,
		}
	}
	return out
}
