package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes table rows to Kafka, one topic per table.
// It implements pipeline.TableSink.
type Writer struct {
	writer      *kafkago.Writer
	topicPrefix string
	logger      *slog.Logger
}

// NewWriter creates a Kafka producer. Topics are prefix + table name, e.g.
// "sdg.indicator_metadata".
func NewWriter(brokers []string, topicPrefix string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topicPrefix: topicPrefix, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// WriteTable publishes every row of the table in a single WriteMessages call.
func (w *Writer) WriteTable(ctx context.Context, table domain.Table, pulledAt time.Time) error {
	if table.Len() == 0 {
		return nil
	}
	topic := w.topicPrefix + table.Name
	msgs := make([]kafkago.Message, table.Len())
	for i, row := range table.Rows {
		msg, err := rowToMessage(table.Name, row, pulledAt)
		if err != nil {
			return err
		}
		msg.Topic = topic
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), topic, err)
	}
	w.logger.Debug("table published", "topic", topic, "rows", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// rowToMessage marshals a row into a Kafka message keyed by its series code.
func rowToMessage(table string, row domain.Row, pulledAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s row: %w", table, err)
	}
	return kafkago.Message{
		Key:   rowKey(row),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "pulled_at", Value: []byte(pulledAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// rowKey picks the series code so all rows of a series land on one partition.
// Metadata rows carry it as m_code, observation rows as series.
func rowKey(row domain.Row) []byte {
	for _, col := range []string{domain.ColumnSeriesCode, "series"} {
		if s, ok := row[col].(string); ok && s != "" {
			return []byte(s)
		}
	}
	return nil
}
