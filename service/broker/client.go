package broker

import (
	"github.com/Shopify/sarama"

	"StreamCursor/config"
	"StreamCursor/tools/errs"
)

// BuildConfig translates the source configuration into a sarama config.
// Control-plane and receive timeouts both default to 60s upstream.
func BuildConfig(cfg config.SourceConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = "stream-cursor"
	if cfg.ConsumerGroup != "" {
		sc.ClientID = cfg.ConsumerGroup
	}

	sc.Net.DialTimeout = cfg.OperationTimeout
	sc.Net.ReadTimeout = cfg.ReceiveTimeout
	sc.Net.WriteTimeout = cfg.OperationTimeout

	sc.Metadata.Retry.Max = cfg.RetryMax
	sc.Metadata.Retry.Backoff = cfg.RetryBackoff

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.MaxWaitTime = cfg.ReceiveTimeout

	return sc
}

// NewClient dials the broker set. The client is handed to the fetcher and
// reader at construction, never built lazily.
func NewClient(cfg config.SourceConfig) (sarama.Client, error) {
	client, err := sarama.NewClient(cfg.Brokers, BuildConfig(cfg))
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg("dial failed", "brokers", cfg.Brokers, "cause", err)
	}
	return client, nil
}
