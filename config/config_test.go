package config

import (
	"testing"
	"time"

	"StreamCursor/tools/errs"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"namespace":           "billing",
		"stream":              "invoices",
		"brokers":             "10.0.0.1:9092, 10.0.0.2:9092",
		"partitionCount":      "8",
		"maxRatePerPartition": "250",
		"consumerGroup":       "cursor-1",
		"failOnDataLoss":      "false",
		"receiveTimeout":      "30s",
	})
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if cfg.Namespace != "billing" || cfg.Stream != "invoices" {
		t.Errorf("identity = %q/%q", cfg.Namespace, cfg.Stream)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "10.0.0.2:9092" {
		t.Errorf("brokers = %v", cfg.Brokers)
	}
	if cfg.PartitionCount != 8 {
		t.Errorf("partitionCount = %d, want 8", cfg.PartitionCount)
	}
	if cfg.MaxRatePerPartition != 250 {
		t.Errorf("rate = %d, want 250", cfg.MaxRatePerPartition)
	}
	if cfg.FailOnDataLoss {
		t.Error("failOnDataLoss should be overridden to false")
	}
	if cfg.ReceiveTimeout != 30*time.Second {
		t.Errorf("receiveTimeout = %v, want 30s", cfg.ReceiveTimeout)
	}
	// untouched keys keep their defaults
	if cfg.OperationTimeout != 60*time.Second {
		t.Errorf("operationTimeout = %v, want default 60s", cfg.OperationTimeout)
	}
}

func TestFromMapDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"namespace":      "ns",
		"stream":         "s",
		"partitionCount": "1",
	})
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if cfg.MaxRatePerPartition != 1000 {
		t.Errorf("default rate = %d, want 1000", cfg.MaxRatePerPartition)
	}
	if !cfg.FailOnDataLoss {
		t.Error("failOnDataLoss must default to true")
	}
}

func TestFromMapRejectsBadInput(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			"namespace":      "ns",
			"stream":         "s",
			"partitionCount": "4",
		}
	}

	cases := []struct {
		name   string
		mutate func(m map[string]string)
	}{
		{"missing namespace", func(m map[string]string) { delete(m, "namespace") }},
		{"missing stream", func(m map[string]string) { delete(m, "stream") }},
		{"missing partition count", func(m map[string]string) { delete(m, "partitionCount") }},
		{"partition count not a number", func(m map[string]string) { m["partitionCount"] = "eight" }},
		{"partition count zero", func(m map[string]string) { m["partitionCount"] = "0" }},
		{"negative rate", func(m map[string]string) { m["maxRatePerPartition"] = "-5" }},
		{"bad bool", func(m map[string]string) { m["failOnDataLoss"] = "yep" }},
		{"bad duration", func(m map[string]string) { m["receiveTimeout"] = "soon" }},
		{"unknown key", func(m map[string]string) { m["partitioncount"] = "4" }},
		{"empty brokers", func(m map[string]string) { m["brokers"] = " , " }},
	}
	for _, tc := range cases {
		m := base()
		tc.mutate(m)
		_, err := FromMap(m)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !errs.ErrInvalidConfiguration.Is(err) {
			t.Errorf("%s: got %v, want invalid configuration", tc.name, err)
		}
	}
}

func TestPartitionsExpansion(t *testing.T) {
	cfg := Default()
	cfg.PartitionCount = 3
	got := cfg.Partitions()
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("Partitions() = %v, want [0 1 2]", got)
	}
}
