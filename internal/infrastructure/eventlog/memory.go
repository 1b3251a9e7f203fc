package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Memory is an in-process Log on watermill's GoChannel. Several nodes sharing
// one Memory behave like a cluster sharing one external log.
type Memory struct {
	topic   string
	channel *gochannel.GoChannel
	logger  *zap.SugaredLogger
}

func NewMemory(topic string, logger *zap.SugaredLogger) *Memory {
	if topic == "" {
		topic = "interchange"
	}

	return &Memory{
		topic: topic,
		// Publish waits for every subscriber's ack, so one appender's records stay in order.
		channel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NopLogger{}),
		logger: logger,
	}
}

func (m *Memory) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	return m.channel.Publish(m.topic, msg)
}

func (m *Memory) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := m.channel.Subscribe(ctx, m.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var rec Record
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				m.logger.Warnw("skipping malformed log entry", "id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			rec.ID = msg.UUID

			if err := handler(ctx, rec); err != nil {
				m.logger.Warnw("log entry handler failed", "id", msg.UUID, "error", err)
			}
			msg.Ack()
		}
	}()

	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return m.channel.Close()
}
