package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/adapter/console"
	"github.com/couchcryptid/sdg-data-pull-service/internal/config"
	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/spf13/cobra"
)

type flattenConfig struct {
	recordPath string
	meta       string
	prefix     string
	strict     bool
	filter     string
	maxRows    int
	logLevel   string
}

func newFlattenCmd() *cobra.Command {
	var fc flattenConfig
	cmd := &cobra.Command{
		Use:   "flatten FILE",
		Short: "Flatten a saved SDG API response and print it",
		Long: `Reads a JSON document saved from the SDG API (or "-" for stdin), flattens it
with the given record path, meta fields, and prefix, and prints the table.
Useful for checking how a response will be tabulated without calling the API.`,
		Example: `  sdgpull flatten indicators.json --record-path series --meta goal,target,code,description,tier --prefix m_
  sdgpull flatten series.json --record-path data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlatten(cmd, args[0], fc)
		},
	}
	cmd.Flags().StringVar(&fc.recordPath, "record-path", "series", "Key holding the nested record array")
	cmd.Flags().StringVar(&fc.meta, "meta", "", "Comma-separated parent fields carried into every row")
	cmd.Flags().StringVar(&fc.prefix, "prefix", "", "Prefix applied to record columns")
	cmd.Flags().BoolVar(&fc.strict, "strict", false, "Fail on records missing the record path or meta fields")
	cmd.Flags().StringVar(&fc.filter, "filter", "", "Keep only rows matching column=value")
	cmd.Flags().IntVar(&fc.maxRows, "max-rows", 20, "Maximum rows to print")
	cmd.Flags().StringVar(&fc.logLevel, "log-level", "warn", "Log level")
	return cmd
}

func runFlatten(cmd *cobra.Command, path string, fc flattenConfig) error {
	doc, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	opts := domain.FlattenOptions{
		RecordPath:          fc.recordPath,
		Meta:                config.ParseList(fc.meta),
		RecordPrefix:        fc.prefix,
		TolerateMissingPath: !fc.strict,
	}
	table, err := domain.Flatten(fc.recordPath, doc, opts)
	if err != nil {
		return err
	}

	if fc.filter != "" {
		column, value, ok := splitFilter(fc.filter)
		if !ok {
			return fmt.Errorf("invalid --filter %q: want column=value", fc.filter)
		}
		if !table.HasColumn(column) {
			return fmt.Errorf("invalid --filter %q: no column %s", fc.filter, column)
		}
		table = table.Filter(table.Name+"_filtered", column, value)
	}

	logger := observability.NewLogger(fc.logLevel, "text")
	w := console.NewWriter(cmd.OutOrStdout(), max(fc.maxRows, 1), logger)
	return w.WriteTable(cmd.Context(), table, time.Now())
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		doc, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return doc, nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return doc, nil
}

func splitFilter(s string) (column, value string, ok bool) {
	column, value, ok = strings.Cut(s, "=")
	return column, value, ok && column != ""
}
