package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the subset of pgxpool.Pool used by Writer.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var copyColumns = []string{"pulled_at", "row_num", "data"}

// Writer appends table rows to PostgreSQL, one SQL table per pulled table.
// Rows are stored as jsonb since observation columns vary by series.
// It implements pipeline.TableSink.
type Writer struct {
	db     db
	close  func()
	logger *slog.Logger
}

// NewWriter connects to PostgreSQL and verifies the connection.
func NewWriter(ctx context.Context, dsn string, logger *slog.Logger) (*Writer, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Writer{db: pool, close: pool.Close, logger: logger}, nil
}

func (w *Writer) Name() string { return "postgres" }

// WriteTable creates the destination table if needed and bulk-loads the rows
// with COPY.
func (w *Writer) WriteTable(ctx context.Context, table domain.Table, pulledAt time.Time) error {
	ident := pgx.Identifier{table.Name}
	if _, err := w.db.Exec(ctx, createTableSQL(ident)); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}
	if table.Len() == 0 {
		return nil
	}

	rows := make([][]any, table.Len())
	for i, row := range table.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("serialize %s row %d: %w", table.Name, i, err)
		}
		rows[i] = []any{pulledAt, i, data}
	}

	n, err := w.db.CopyFrom(ctx, ident, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s (rows=%d): %w", table.Name, len(rows), err)
	}
	w.logger.Debug("table copied", "table", table.Name, "rows", n)
	return nil
}

func (w *Writer) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}

func createTableSQL(ident pgx.Identifier) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	pulled_at timestamptz NOT NULL,
	row_num   integer     NOT NULL,
	data      jsonb       NOT NULL,
	PRIMARY KEY (pulled_at, row_num)
)`, ident.Sanitize())
}
