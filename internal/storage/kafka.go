package storage

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// ResultsWriter publishes each extracted item as a JSON message keyed by URL.
type ResultsWriter struct {
	writer *kafka.Writer
}

func NewResultsWriter(brokers []string, topic string) *ResultsWriter {
	return &ResultsWriter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (rw *ResultsWriter) WriteBatch(ctx context.Context, b Batch) error {
	if len(b.Items) == 0 {
		return nil
	}
	msgs, err := itemMessages(b)
	if err != nil {
		return err
	}
	return rw.writer.WriteMessages(ctx, msgs...)
}

func itemMessages(b Batch) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(b.Items))
	for _, it := range b.Items {
		value, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(it.URL),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(b.RunID)},
				{Key: "site", Value: []byte(b.Site)},
				{Key: "batch", Value: []byte(strconv.Itoa(b.Number))},
			},
		})
	}
	return msgs, nil
}

func (rw *ResultsWriter) Close() error {
	return rw.writer.Close()
}
