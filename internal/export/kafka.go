package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"frota/internal/nfe/models"
)

// RowMessage is the JSON value published for each row.
type RowMessage struct {
	AccessKey string `json:"access_key"`
	Station   string `json:"station"`
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Plate     string `json:"plate"`
	KM        string `json:"km"`
	RunID     string `json:"run_id,omitempty"`
}

// KafkaSink publishes one message per row, keyed by access key.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	runID  string
}

// KafkaOption configures a KafkaSink.
type KafkaOption func(*kafkaOptions)

type kafkaOptions struct {
	clientOpts []kgo.Opt
	runID      string
}

// WithClientOptions passes extra options to the franz-go client.
func WithClientOptions(opts ...kgo.Opt) KafkaOption {
	return func(o *kafkaOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithRunID tags every message with the batch run ID.
func WithRunID(runID string) KafkaOption {
	return func(o *kafkaOptions) {
		o.runID = runID
	}
}

// NewKafkaSink connects to brokers and produces to topic.
func NewKafkaSink(brokers []string, topic string, opts ...KafkaOption) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	var o kafkaOptions
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50 * time.Millisecond),
	}, o.clientOpts...)

	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, runID: o.runID}, nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (s *KafkaSink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, s.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Write(ctx context.Context, rows []models.Row) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(rows))
	for _, row := range rows {
		value, err := json.Marshal(RowMessage{
			AccessKey: row.AccessKey.String(),
			Station:   row.Station,
			Date:      row.Date,
			Amount:    row.Amount,
			Plate:     row.Plate,
			KM:        row.KM,
			RunID:     s.runID,
		})
		if err != nil {
			return fmt.Errorf("encode row %s: %w", row.AccessKey, err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(row.AccessKey.String()),
			Value: value,
		})
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending records and closes the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
