// Package kafka publishes recoded person records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	// writeChunk bounds messages per WriteMessages call.
	writeChunk = 1000

	individualIDField = "individual_id"
	householdIDField  = "household_id"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per person, keyed by the individual
// correlation id so a consumer can join it with the database rows.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish sends every record of rs and returns how many were acknowledged.
func (p *Publisher) Publish(ctx context.Context, stateName string, rs domain.RecordSet, keys domain.Keys) (int, error) {
	if len(keys.Individual) != rs.Len() || len(keys.Household) != rs.Len() {
		return 0, fmt.Errorf("%w: %d records, %d/%d keys",
			domain.ErrKeyCount, rs.Len(), len(keys.Individual), len(keys.Household))
	}

	publishedAt := domain.Now()
	sent := 0
	for start := 0; start < rs.Len(); start += writeChunk {
		end := min(start+writeChunk, rs.Len())
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rs.Record(i), keys.Individual[i], keys.Household[i], stateName, publishedAt)
			if err != nil {
				return sent, err
			}
			msgs = append(msgs, msg)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return sent, fmt.Errorf("publish records %d-%d: %w", start, end-1, err)
		}
		sent += len(msgs)
	}

	p.logger.Info("records published", "state", stateName, "messages", sent)
	return sent, nil
}

// Close flushes pending writes and releases the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals one person record with its correlation ids.
func serializeToMessage(rec map[string]string, individualID, householdID, stateName string, at time.Time) (kafkago.Message, error) {
	rec[individualIDField] = individualID
	rec[householdIDField] = householdID
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", individualID, err)
	}
	return kafkago.Message{
		Key:   []byte(individualID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(stateName)},
			{Key: "published_at", Value: []byte(at.Format(time.RFC3339))},
		},
	}, nil
}
