package config

import (
	"strconv"
	"strings"
	"time"

	"StreamCursor/tools/errs"
)

// Explicit conversion boundary: every value arriving as a string is
// parsed by one of these and malformed input surfaces as a typed
// configuration error, never a runtime conversion panic.

func ParseInt64(key, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errs.ErrInvalidConfiguration.WrapMsg("not an integer", "key", key, "value", value)
	}
	return n, nil
}

func ParsePartitionCount(value string) (int32, error) {
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil || n <= 0 {
		return 0, errs.ErrInvalidConfiguration.WrapMsg("partition count must be a positive integer", "value", value)
	}
	return int32(n), nil
}

func ParseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errs.ErrInvalidConfiguration.WrapMsg("not a boolean", "key", key, "value", value)
	}
	return b, nil
}

func ParseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, errs.ErrInvalidConfiguration.WrapMsg("not a positive duration", "key", key, "value", value)
	}
	return d, nil
}

func ParseBrokers(value string) ([]string, error) {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("empty broker list", "value", value)
	}
	return out, nil
}
