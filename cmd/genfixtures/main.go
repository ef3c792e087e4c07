// Command genfixtures downloads a live sample from the SDG API and writes
// trimmed fixtures for the pipeline test suite. It flattens the trimmed
// documents with the domain package and reports the resulting table sizes so
// the fixtures can be checked before committing.
//
// Usage:
//
//	go run ./cmd/genfixtures \
//	  -out internal/pipeline/testdata \
//	  -indicators 4 \
//	  -observations 3
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/adapter/unstats"
	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
)

const (
	defaultMetadataURL = "https://unstats.un.org/SDGAPI/v1/sdg/Indicator/List"
	defaultDataURL     = "https://unstats.un.org/SDGAPI/v1/sdg/Series/Data"
)

// seriesPage mirrors the envelope of a Series/Data response. Records stay raw
// so their key order survives the rewrite.
type seriesPage struct {
	Size          int               `json:"size"`
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
	PageNumber    int               `json:"pageNumber"`
	Attributes    json.RawMessage   `json:"attributes,omitempty"`
	Dimensions    json.RawMessage   `json:"dimensions,omitempty"`
	Data          []json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "directory to write indicator_list.json and series_data.json")
	indicators := flag.Int("indicators", 4, "number of indicators to keep")
	observations := flag.Int("observations", 3, "number of observations to keep")
	metadataURL := flag.String("metadata-url", defaultMetadataURL, "SDG Indicator/List endpoint")
	dataURL := flag.String("data-url", defaultDataURL, "SDG Series/Data endpoint")
	timeout := flag.Duration("timeout", 2*time.Minute, "HTTP timeout per request")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2**timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := unstats.NewClient(*metadataURL, *dataURL, *timeout, observability.NewMetricsForTesting(), logger)

	list, err := client.FetchIndicators(ctx)
	if err != nil {
		return fmt.Errorf("fetch indicator list: %w", err)
	}
	trimmedList, err := trimIndicators(list, *indicators)
	if err != nil {
		return err
	}

	metadata, err := domain.Flatten(domain.TableIndicatorMetadata, trimmedList, domain.MetadataOptions(true))
	if err != nil {
		return err
	}
	codes, err := metadata.Strings(domain.ColumnSeriesCode)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return fmt.Errorf("trimmed indicator list has no series codes; raise -indicators")
	}

	data, err := client.FetchSeriesData(ctx, codes[0])
	if err != nil {
		return fmt.Errorf("fetch series data %s: %w", codes[0], err)
	}
	trimmedData, err := trimSeriesPage(data, *observations)
	if err != nil {
		return err
	}

	observationTable, err := domain.Flatten(domain.TableSeriesData, trimmedData, domain.ObservationOptions(true))
	if err != nil {
		return err
	}

	if err := writeFixture(filepath.Join(*outDir, "indicator_list.json"), trimmedList); err != nil {
		return err
	}
	if err := writeFixture(filepath.Join(*outDir, "series_data.json"), trimmedData); err != nil {
		return err
	}

	tier1 := metadata.Filter(domain.TableIndicatorMetadataT1, domain.ColumnTier, "1")
	log.Printf("%s: %d rows, %d columns", metadata.Name, metadata.Len(), len(metadata.Columns))
	log.Printf("%s: %d rows", tier1.Name, tier1.Len())
	log.Printf("%s (%s): %d rows, %d columns", observationTable.Name, codes[0], observationTable.Len(), len(observationTable.Columns))
	return nil
}

// trimIndicators keeps the first n elements of an Indicator/List document.
func trimIndicators(doc []byte, n int) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil, fmt.Errorf("decode indicator list: %w", err)
	}
	if n < len(items) {
		items = items[:n]
	}
	return json.Marshal(items)
}

// trimSeriesPage keeps the first n observations of a Series/Data document and
// rewrites the paging fields to match.
func trimSeriesPage(doc []byte, n int) ([]byte, error) {
	var page seriesPage
	if err := json.Unmarshal(doc, &page); err != nil {
		return nil, fmt.Errorf("decode series data: %w", err)
	}
	if n < len(page.Data) {
		page.Data = page.Data[:n]
	}
	page.TotalElements = len(page.Data)
	page.TotalPages = 1
	page.PageNumber = 1
	return json.Marshal(page)
}

func writeFixture(path string, doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var v json.RawMessage = doc
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
