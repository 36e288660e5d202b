package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/infra/config"
)

// Producer sends gateway events to Kafka, either fire-and-forget (async) or acknowledged (sync).
type Producer struct {
	async     sarama.AsyncProducer
	sync      sarama.SyncProducer
	logger    *zap.Logger
	cfg       config.KafkaSettings
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
}

func saramaConfig(async bool) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_5_0_0
	cfg.ClientID = "access-gateway"

	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Errors = true
	// SyncProducer requires successes to be returned.
	cfg.Producer.Return.Successes = !async
	if async {
		cfg.Producer.Flush.Frequency = 100 * time.Millisecond
		cfg.Producer.Flush.Messages = 100
	}

	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// NewProducer dials the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	p := &Producer{logger: logger, cfg: cfg, done: make(chan struct{}), drained: make(chan struct{})}

	if cfg.Async {
		producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig(true))
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		p.async = producer
		go p.handleErrors()
	} else {
		producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig(false))
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		p.sync = producer
		close(p.drained)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("async", cfg.Async),
	)

	return p, nil
}

func newAsyncProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	p := &Producer{async: async, logger: logger, cfg: cfg, done: make(chan struct{}), drained: make(chan struct{})}
	go p.handleErrors()
	return p
}

func newSyncProducer(syncProducer sarama.SyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	p := &Producer{sync: syncProducer, logger: logger, cfg: cfg, done: make(chan struct{}), drained: make(chan struct{})}
	close(p.drained)
	return p
}

// handleErrors drains async delivery failures into the log until Close.
func (p *Producer) handleErrors() {
	defer close(p.drained)
	for {
		select {
		case perr, ok := <-p.async.Errors():
			if !ok {
				return
			}
			if perr != nil {
				p.logger.Error("kafka delivery failed",
					zap.Error(perr.Err),
					zap.String("topic", perr.Msg.Topic),
				)
			}
		case <-p.done:
			return
		}
	}
}

// Send enqueues (async) or delivers (sync) one message.
func (p *Producer) Send(ctx context.Context, msg *sarama.ProducerMessage) error {
	if p.sync != nil {
		if _, _, err := p.sync.SendMessage(msg); err != nil {
			return fmt.Errorf("send kafka message: %w", err)
		}
		return nil
	}

	select {
	case p.async.Input() <- msg:
		return nil
	case <-p.done:
		return fmt.Errorf("kafka producer closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending messages and stops the error drain.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.logger.Info("closing kafka producer")
		close(p.done)
		<-p.drained

		if p.async != nil {
			err = p.async.Close()
		} else {
			err = p.sync.Close()
		}
		if err != nil {
			err = fmt.Errorf("close kafka producer: %w", err)
		}
	})
	return err
}

// TopicName returns the full topic name with prefix
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
