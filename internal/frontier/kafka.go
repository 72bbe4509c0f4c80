package frontier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"news-scraper/pkg/models"

	"github.com/segmentio/kafka-go"
)

// URLFrontier moves enumerated links between an index run and article runs
// through a Kafka topic.
type URLFrontier struct {
	reader *kafka.Reader
	writer *kafka.Writer
}

type linkMessage struct {
	URL     string `json:"url"`
	Summary string `json:"summary,omitempty"`
}

func NewURLFrontier(brokers []string, topic, groupID string) *URLFrontier {
	return &URLFrontier{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (uf *URLFrontier) AddLinks(ctx context.Context, links []models.ChildLink) error {
	msgs, err := linkMessages(links)
	if err != nil {
		return err
	}
	return uf.writer.WriteMessages(ctx, msgs...)
}

func linkMessages(links []models.ChildLink) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(links))
	for _, l := range links {
		value, err := json.Marshal(linkMessage{URL: l.URL, Summary: l.Summary})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(l.URL), Value: value})
	}
	return msgs, nil
}

// decodeLink accepts JSON link messages as well as plain URL payloads.
func decodeLink(value []byte) models.ChildLink {
	var m linkMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return models.ChildLink{URL: string(value)}
	}
	return models.ChildLink{URL: m.URL, Summary: m.Summary}
}

// Drain reads links until max are read (0 means unlimited) or no message
// arrives within idle.
func (uf *URLFrontier) Drain(ctx context.Context, max int, idle time.Duration) ([]models.ChildLink, error) {
	var links []models.ChildLink
	for max == 0 || len(links) < max {
		readCtx, cancel := context.WithTimeout(ctx, idle)
		m, err := uf.reader.ReadMessage(readCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			break
		}
		if err != nil {
			return links, err
		}
		link := decodeLink(m.Value)
		if link.URL != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

func (uf *URLFrontier) Close() error {
	if err := uf.reader.Close(); err != nil {
		return err
	}
	return uf.writer.Close()
}
