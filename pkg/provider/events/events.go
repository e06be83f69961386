// Package events mirrors the daemon's MINNA_PROGRESS stdout frames onto
// an optional Kafka/Redpanda topic, so a multi-process supervisor can
// watch sync progress without scraping stdout. Grounded on
// pkg/indexer/relay's kgo.Client producer construction (seed brokers,
// bounded retry backoff, batching); unlike the relay's outbox-polling
// consumer-of-a-table shape, this publisher is called directly from the
// progress path, so it produces asynchronously and never blocks it.
package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Progress is one progress mirror frame, matching the MINNA_PROGRESS
// stdout line's fields.
type Progress struct {
	Provider           string `json:"provider"`
	Status             string `json:"status"`
	Message            string `json:"message"`
	DocumentsProcessed *int   `json:"documents_processed,omitempty"`
	Timestamp          string `json:"timestamp"`
}

// Publisher mirrors progress frames onto a Kafka topic. A nil
// *Publisher (or one built from empty config) is a valid no-op: Publish
// becomes a cheap no-op and Close is safe to call.
type Publisher struct {
	client *kgo.Client
	topic  string
	log    hclog.Logger
}

// Config configures the optional progress mirror. Brokers empty means
// disabled.
type Config struct {
	Brokers []string
	Topic   string
}

// ConfigFromEnv reads MINNA_KAFKA_BROKERS (comma-separated) and
// MINNA_KAFKA_PROGRESS_TOPIC, following pkg/kafka/config.go's
// environment-variable-first convention. Returns a zero Config (no
// brokers) when unset, which New turns into a no-op Publisher.
func ConfigFromEnv() Config {
	var brokers []string
	if raw := os.Getenv("MINNA_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("MINNA_KAFKA_PROGRESS_TOPIC")
	if topic == "" {
		topic = "minna.progress"
	}
	return Config{Brokers: brokers, Topic: topic}
}

// New builds a Publisher. With no brokers configured it returns a
// non-nil Publisher whose Publish/Close are no-ops, so callers never
// need to nil-check before use.
func New(cfg Config, log hclog.Logger) (*Publisher, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if len(cfg.Brokers) == 0 {
		return &Publisher{log: log}, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RetryBackoffFn(func(tries int) time.Duration {
			backoff := time.Duration(tries) * 100 * time.Millisecond
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			return backoff
		}),
		kgo.RequestRetries(5),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		log:    log.Named("events"),
	}, nil
}

// Enabled reports whether the publisher is backed by a real Kafka
// client, for callers that want to skip building a frame entirely.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

// Publish mirrors frame onto the configured topic. It is fire-and-
// forget: delivery errors are logged, never returned, since a dropped
// mirror frame must never affect sync progress itself. A disabled
// Publisher (nil or no brokers) does nothing.
func (p *Publisher) Publish(frame Progress) {
	if !p.Enabled() {
		return
	}
	if frame.Timestamp == "" {
		frame.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		p.log.Warn("marshaling progress mirror frame", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(frame.Provider),
		Value: data,
	}
	p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("publishing progress mirror frame", "error", err, "provider", frame.Provider)
		}
	})
}

// Close releases the underlying Kafka client, flushing any buffered
// records first. Safe to call on a disabled Publisher.
func (p *Publisher) Close() {
	if !p.Enabled() {
		return
	}
	p.client.Close()
}
