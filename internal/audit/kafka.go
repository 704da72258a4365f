package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/TempVoice/middleware/log"
	"github.com/Gopher0727/TempVoice/utils/snowflake"
)

// KafkaPublisher writes audit events to a Kafka topic, keyed by guild so
// that a guild's events stay ordered within one partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	ids      *snowflake.Generator
	log      *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start sarama producer: %w", err)
	}

	ids, err := snowflake.NewGenerator(snowflake.Config{WorkerID: 1})
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		ids:      ids,
		log:      log,
	}, nil
}

// Publish sends the event, stamping an ID and timestamp if unset. Failures
// are logged and swallowed.
func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.ID == 0 {
		if id, err := k.ids.NextID(); err == nil {
			ev.ID = id
		}
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	bytes, err := json.Marshal(ev)
	if err != nil {
		k.log.ErrorContext(ctx, "failed to marshal audit event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.GuildID),
		Value: sarama.ByteEncoder(bytes),
	}

	if _, _, err := k.producer.SendMessage(msg); err != nil {
		k.log.WarnContext(ctx, "failed to publish audit event",
			zap.String("action", ev.Action),
			zap.String("guild_id", ev.GuildID),
			zap.Error(err),
		)
	}
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
