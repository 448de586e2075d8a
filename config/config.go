package config

import (
	"time"

	"StreamCursor/cursor"
	"StreamCursor/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// SourceConfig is the configuration surface of one cursor source.
type SourceConfig struct {
	// Namespace and Stream name the event log; both are required.
	Namespace string
	Stream    string

	Brokers        []string
	PartitionCount int32

	// MaxRatePerPartition caps records per batch per partition.
	MaxRatePerPartition int64
	ConsumerGroup       string

	// FailOnDataLoss makes a detected offset gap fatal instead of logged.
	FailOnDataLoss bool

	ReceiveTimeout   time.Duration
	OperationTimeout time.Duration
	RetryMax         int
	RetryBackoff     time.Duration
}

// Default mirrors the documented defaults: rate 1000, fail on data loss,
// 60s transport timeouts.
func Default() SourceConfig {
	return SourceConfig{
		Brokers:             []string{"127.0.0.1:9092"},
		MaxRatePerPartition: cursor.DefaultMaxRatePerPartition,
		FailOnDataLoss:      true,
		ReceiveTimeout:      60 * time.Second,
		OperationTimeout:    60 * time.Second,
		RetryMax:            3,
		RetryBackoff:        200 * time.Millisecond,
	}
}

// rawConfig is the stringly shape options arrive in from the host.
type rawConfig struct {
	Namespace           string `mapstructure:"namespace"`
	Stream              string `mapstructure:"stream"`
	Brokers             string `mapstructure:"brokers"`
	PartitionCount      string `mapstructure:"partitionCount"`
	MaxRatePerPartition string `mapstructure:"maxRatePerPartition"`
	ConsumerGroup       string `mapstructure:"consumerGroup"`
	FailOnDataLoss      string `mapstructure:"failOnDataLoss"`
	ReceiveTimeout      string `mapstructure:"receiveTimeout"`
	OperationTimeout    string `mapstructure:"operationTimeout"`
	RetryMax            string `mapstructure:"retryMax"`
	RetryBackoff        string `mapstructure:"retryBackoff"`
}

// FromMap decodes host-supplied options over the defaults. Unknown keys
// are rejected so a typo never silently falls back to a default.
func FromMap(raw map[string]string) (SourceConfig, error) {
	var rc rawConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rc,
		ErrorUnused: true,
	})
	if err != nil {
		return SourceConfig{}, errs.Wrap(err)
	}
	if err := dec.Decode(raw); err != nil {
		return SourceConfig{}, errs.ErrInvalidConfiguration.WrapMsg("unrecognized option", "cause", err)
	}

	cfg := Default()
	cfg.Namespace = rc.Namespace
	cfg.Stream = rc.Stream
	cfg.ConsumerGroup = rc.ConsumerGroup

	if rc.Brokers != "" {
		if cfg.Brokers, err = ParseBrokers(rc.Brokers); err != nil {
			return SourceConfig{}, err
		}
	}
	if rc.PartitionCount != "" {
		if cfg.PartitionCount, err = ParsePartitionCount(rc.PartitionCount); err != nil {
			return SourceConfig{}, err
		}
	}
	if rc.MaxRatePerPartition != "" {
		rate, err := ParseInt64("maxRatePerPartition", rc.MaxRatePerPartition)
		if err != nil {
			return SourceConfig{}, err
		}
		if rate <= 0 {
			return SourceConfig{}, errs.ErrInvalidConfiguration.WrapMsg("maxRatePerPartition must be positive", "value", rate)
		}
		cfg.MaxRatePerPartition = rate
	}
	if rc.FailOnDataLoss != "" {
		if cfg.FailOnDataLoss, err = ParseBool("failOnDataLoss", rc.FailOnDataLoss); err != nil {
			return SourceConfig{}, err
		}
	}
	if rc.ReceiveTimeout != "" {
		if cfg.ReceiveTimeout, err = ParseDuration("receiveTimeout", rc.ReceiveTimeout); err != nil {
			return SourceConfig{}, err
		}
	}
	if rc.OperationTimeout != "" {
		if cfg.OperationTimeout, err = ParseDuration("operationTimeout", rc.OperationTimeout); err != nil {
			return SourceConfig{}, err
		}
	}
	if rc.RetryMax != "" {
		n, err := ParseInt64("retryMax", rc.RetryMax)
		if err != nil {
			return SourceConfig{}, err
		}
		if n < 0 {
			return SourceConfig{}, errs.ErrInvalidConfiguration.WrapMsg("retryMax must not be negative", "value", n)
		}
		cfg.RetryMax = int(n)
	}
	if rc.RetryBackoff != "" {
		if cfg.RetryBackoff, err = ParseDuration("retryBackoff", rc.RetryBackoff); err != nil {
			return SourceConfig{}, err
		}
	}

	return cfg, cfg.Validate()
}

// Validate enforces the required keys.
func (c SourceConfig) Validate() error {
	if c.Namespace == "" {
		return errs.ErrInvalidConfiguration.WrapMsg("namespace is required")
	}
	if c.Stream == "" {
		return errs.ErrInvalidConfiguration.WrapMsg("stream is required")
	}
	if len(c.Brokers) == 0 {
		return errs.ErrInvalidConfiguration.WrapMsg("at least one broker is required")
	}
	if c.PartitionCount <= 0 {
		return errs.ErrInvalidConfiguration.WrapMsg("partitionCount is required and must be positive")
	}
	if c.MaxRatePerPartition <= 0 {
		return errs.ErrInvalidConfiguration.WrapMsg("maxRatePerPartition must be positive")
	}
	return nil
}

// Partitions expands the configured count into the fixed ordered
// partition set of the source.
func (c SourceConfig) Partitions() []cursor.PartitionID {
	out := make([]cursor.PartitionID, c.PartitionCount)
	for i := range out {
		out[i] = cursor.PartitionID(i)
	}
	return out
}
