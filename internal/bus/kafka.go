package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/dlq"
	"pulse/internal/logger"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
	"pulse/pkg/models"
)

// kafkaEnvelope is the wire form of an event on the Kafka backend, where
// the log entry has no field map of its own.
type kafkaEnvelope struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	TS     time.Time              `json:"ts"`
	Data   map[string]interface{} `json:"data"`
}

// KafkaBus is the alternate log backend. Offsets are committed in order, so
// unlike the stream backend a failed entry is parked in the DLQ and then
// committed rather than left pending; replay happens through the DLQ.
type KafkaBus struct {
	*dispatcher
	cfg    config.KafkaConfig
	writer *kafka.Writer
	reader *kafka.Reader
	logger logger.Logger
}

func NewKafkaBus(cfg config.KafkaConfig, seen *SeenStore, store *dlq.Store, log logger.Logger) *KafkaBus {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}

	return &KafkaBus{
		dispatcher: newDispatcher(seen, store, log),
		cfg:        cfg,
		writer:     w,
		logger:     log,
	}
}

func (b *KafkaBus) Publish(ctx context.Context, eventType string, data map[string]interface{}, source string) (string, error) {
	envelope := kafkaEnvelope{
		ID:     uuid.New().String(),
		Type:   eventType,
		Source: source,
		TS:     time.Now().UTC(),
		Data:   data,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(envelope.ID),
		Value: body,
		Time:  envelope.TS,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(eventType, source).Inc()
	return envelope.ID, nil
}

func (b *KafkaBus) Subscribe(eventType string, h Handler) {
	b.subscribe(eventType, h)
}

func (b *KafkaBus) Consume(ctx context.Context, group, consumer string, count int64, block time.Duration) error {
	b.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.cfg.Brokers,
		GroupID:  group,
		Topic:    b.cfg.Topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  block,
	})

	consumeCtx := logging.WithConsumer(ctx, consumer)
	b.logger.InfowCtx(consumeCtx, "Started consuming",
		"topic", b.cfg.Topic,
		"group", group,
	)

	for {
		m, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.InfowCtx(consumeCtx, "Stopped consuming", "reason", "context canceled")
				return ctx.Err()
			}
			b.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message", "error", err)
			time.Sleep(time.Second)
			continue
		}

		b.handleMessage(consumeCtx, group, m)

		if err := b.reader.CommitMessages(ctx, m); err != nil {
			b.logger.ErrorwCtx(consumeCtx, "Failed to commit message", "error", err)
		}
	}
}

func (b *KafkaBus) handleMessage(ctx context.Context, group string, m kafka.Message) {
	var envelope kafkaEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		b.logger.ErrorwCtx(ctx, "Failed to decode message, parking in DLQ", "error", err)
		b.pushFailure(ctx, group, models.Event{ID: offsetID(m)}, map[string]interface{}{"raw": string(m.Value)}, err)
		return
	}

	id := envelope.ID
	if id == "" {
		id = offsetID(m)
	}

	event := models.Event{
		ID:        id,
		Type:      envelope.Type,
		Source:    envelope.Source,
		Timestamp: envelope.TS,
		Payload:   envelope.Data,
	}
	if event.Payload == nil {
		event.Payload = make(map[string]interface{})
	}

	raw := map[string]interface{}{
		"type":   envelope.Type,
		"source": envelope.Source,
		"ts":     envelope.TS.Format(time.RFC3339Nano),
		"data":   envelope.Data,
	}

	b.deliver(ctx, group, event, raw)
}

func offsetID(m kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

func (b *KafkaBus) Close() error {
	var err error
	if b.writer != nil {
		err = b.writer.Close()
	}
	if b.reader != nil {
		if closeErr := b.reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
