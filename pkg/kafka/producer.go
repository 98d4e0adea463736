// Package kafka wraps the sarama sync producer used by the gateway's outbox
// relay.
package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

type Balancer int

const (
	RoundRobin Balancer = iota
	Hash
)

type RequiredAcks int

const (
	RequireAll RequiredAcks = iota
	RequireLocal
	RequireNone
)

type Producer interface {
	PushMessage(ctx context.Context, key, value []byte, topic string) (partition int32, offset int64, err error)
	Close() error
}

type producer struct {
	sp sarama.SyncProducer
}

type Option func(*sarama.Config)

func WithBalancer(balancer Balancer) Option {
	return func(cfg *sarama.Config) {
		switch balancer {
		case Hash:
			cfg.Producer.Partitioner = sarama.NewHashPartitioner
		default:
			cfg.Producer.Partitioner = sarama.NewRoundRobinPartitioner
		}
	}
}

func WithRequiredAcks(acks RequiredAcks) Option {
	return func(cfg *sarama.Config) {
		switch acks {
		case RequireLocal:
			cfg.Producer.RequiredAcks = sarama.WaitForLocal
		case RequireNone:
			cfg.Producer.RequiredAcks = sarama.NoResponse
		default:
			cfg.Producer.RequiredAcks = sarama.WaitForAll
		}
	}
}

func NewProducer(brokers []string, opts ...Option) (Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Net.MaxOpenRequests = 1

	for _, opt := range opts {
		opt(cfg)
	}

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create sync producer: %w", err)
	}

	return &producer{sp: sp}, nil
}

func (p *producer) PushMessage(ctx context.Context, key, value []byte, topic string) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.sp.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("send message: %w", err)
	}

	return partition, offset, nil
}

func (p *producer) Close() error {
	return p.sp.Close()
}
