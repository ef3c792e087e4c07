// Package console renders pulled tables to a terminal.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxCellWidth = 48

// Writer prints each table as a bordered grid, showing at most maxRows rows.
// It implements pipeline.TableSink.
type Writer struct {
	out     io.Writer
	maxRows int
	logger  *slog.Logger
}

// NewWriter creates a Writer. A nil out writes to stdout.
func NewWriter(out io.Writer, maxRows int, logger *slog.Logger) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{out: out, maxRows: maxRows, logger: logger}
}

func (w *Writer) Name() string { return "console" }

// WriteTable renders the head of the table followed by a row count caption.
func (w *Writer) WriteTable(ctx context.Context, tbl domain.Table, pulledAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(tbl.Columns) == 0 {
		_, err := fmt.Fprintf(w.out, "%s (pulled %s): no rows\n", tbl.Name, pulledAt.UTC().Format(time.RFC3339))
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w.out)
	t.SetTitle("%s", tbl.Name)

	header := make(table.Row, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	shown := min(tbl.Len(), w.maxRows)
	for _, row := range tbl.Rows[:shown] {
		cells := make(table.Row, len(tbl.Columns))
		for i, c := range tbl.Columns {
			cells[i] = formatCell(row[c])
		}
		t.AppendRow(cells)
	}
	t.SetCaption("showing %d of %d rows, pulled %s", shown, tbl.Len(), pulledAt.UTC().Format(time.RFC3339))
	t.Render()

	w.logger.Debug("table rendered", "table", tbl.Name, "rows", tbl.Len(), "shown", shown)
	return nil
}

func formatCell(v any) string {
	var s string
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprint(v)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(v)
	}
	return text.Trim(s, maxCellWidth)
}
