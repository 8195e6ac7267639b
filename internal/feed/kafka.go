package feed

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/xtxerr/wavebuf/config"
	"github.com/xtxerr/wavebuf/internal/logging"
	"github.com/xtxerr/wavebuf/internal/trace"
	"github.com/xtxerr/wavebuf/internal/wire"
)

// KafkaOptions configures the Kafka segment source.
type KafkaOptions struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// DefaultKafkaOptions returns the default Kafka source configuration for
// the given brokers.
func DefaultKafkaOptions(brokers []string) KafkaOptions {
	return KafkaOptions{
		Brokers:  brokers,
		Topic:    config.DefaultFeedTopic,
		GroupID:  config.DefaultFeedGroupID,
		MinBytes: config.DefaultFeedMinBytes,
		MaxBytes: config.DefaultFeedMaxBytes,
	}
}

// KafkaSource reads wire-encoded segments from a Kafka topic.
type KafkaSource struct {
	reader  *kafka.Reader
	log     *slog.Logger
	skipped int64
}

// NewKafka creates a Kafka segment source.
func NewKafka(opts KafkaOptions) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  opts.Brokers,
			Topic:    opts.Topic,
			GroupID:  opts.GroupID,
			MinBytes: opts.MinBytes,
			MaxBytes: opts.MaxBytes,
		}),
		log: logging.Component("feed"),
	}
}

// Next returns the next decodable segment from the topic. Messages that
// fail to decode are logged and skipped rather than wedging the feed; a
// single poison message must not stall every channel behind it.
func (k *KafkaSource) Next(ctx context.Context) (*trace.Segment, error) {
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		seg, err := wire.DecodeSegment(msg.Value)
		if err != nil {
			k.skipped++
			k.log.Warn("skipping undecodable segment message",
				"error", err, "partition", msg.Partition, "offset", msg.Offset)
			continue
		}
		return seg, nil
	}
}

// Skipped returns the number of messages dropped as undecodable.
func (k *KafkaSource) Skipped() int64 { return k.skipped }

// Close closes the underlying Kafka reader.
func (k *KafkaSource) Close() error {
	return k.reader.Close()
}
