package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Conf produces order lifecycle events. A Conf built without brokers drops
// every message, so local runs and tests need no broker.
type Conf struct {
	client *kgo.Client
	log    *slog.Logger
}

func NewConf(brokers []string, clientID string, log *slog.Logger) (*Conf, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(brokers) == 0 {
		log.Warn("no kafka brokers configured, order events will not be published")
		return &Conf{log: log}, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &Conf{client: client, log: log}, nil
}

func (k *Conf) Enabled() bool { return k != nil && k.client != nil }

func (k *Conf) ProduceMessage(ctx context.Context, topic string, key, value []byte) error {
	if !k.Enabled() {
		return nil
	}
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing to %s: %w", topic, err)
	}
	return nil
}

func (k *Conf) Close() {
	if k.Enabled() {
		k.client.Close()
	}
}
