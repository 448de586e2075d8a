package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"

	"StreamCursor/cursor"
	"StreamCursor/tools/errs"
)

type fakeLookup struct {
	offsets   map[int32]int64
	failFirst int // number of calls that fail before succeeding
	calls     int
	refreshes int
}

func (f *fakeLookup) GetOffset(_ string, partitionID int32, _ int64) (int64, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return 0, errors.New("leader not available")
	}
	next, ok := f.offsets[partitionID]
	if !ok {
		return 0, errors.New("unknown partition")
	}
	return next, nil
}

func (f *fakeLookup) RefreshMetadata(_ ...string) error {
	f.refreshes++
	return nil
}

func TestFetchHighWaterMark(t *testing.T) {
	lookup := &fakeLookup{offsets: map[int32]int64{0: 500, 1: 0}}
	f, err := NewFetcher(lookup, "events", 0, time.Millisecond)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	snap, err := f.FetchHighWaterMark(context.Background(), []cursor.PartitionID{0, 1}, false)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !snap.IsCeiling() {
		t.Error("snapshot must carry the ceiling batch id")
	}
	if got := snap.Offsets[0]; got.Offset != 499 || got.SequenceNumber != 499 {
		t.Errorf("partition 0 = %+v, want last position 499", got)
	}
	if got := snap.Offsets[1]; got != cursor.NotStarted {
		t.Errorf("empty partition = %+v, want not-started sentinel", got)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	lookup := &fakeLookup{offsets: map[int32]int64{0: 10}, failFirst: 2}
	f, err := NewFetcher(lookup, "events", 2, time.Millisecond)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	snap, err := f.FetchHighWaterMark(context.Background(), []cursor.PartitionID{0}, false)
	if err != nil {
		t.Fatalf("fetch should have recovered: %v", err)
	}
	if snap.Offsets[0].Offset != 9 {
		t.Errorf("offset = %d, want 9", snap.Offsets[0].Offset)
	}
	if lookup.refreshes == 0 {
		t.Error("metadata should have been refreshed before retrying")
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	lookup := &fakeLookup{offsets: map[int32]int64{0: 10}, failFirst: 100}
	f, err := NewFetcher(lookup, "events", 1, time.Millisecond)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	_, err = f.FetchHighWaterMark(context.Background(), []cursor.PartitionID{0}, false)
	if !errs.ErrTransport.Is(err) {
		t.Fatalf("got %v, want transport error", err)
	}
	if lookup.calls != 2 {
		t.Errorf("attempts = %d, want retryMax+1 = 2", lookup.calls)
	}
}

func TestForceRetryDoublesBudget(t *testing.T) {
	lookup := &fakeLookup{offsets: map[int32]int64{0: 10}, failFirst: 100}
	f, err := NewFetcher(lookup, "events", 1, time.Millisecond)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	_, err = f.FetchHighWaterMark(context.Background(), []cursor.PartitionID{0}, true)
	if err == nil {
		t.Fatal("expected exhaustion")
	}
	if lookup.calls != 4 {
		t.Errorf("attempts = %d, want doubled budget 4", lookup.calls)
	}
}

func TestFetchHonorsContext(t *testing.T) {
	lookup := &fakeLookup{offsets: map[int32]int64{0: 10}, failFirst: 100}
	f, err := NewFetcher(lookup, "events", 5, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FetchHighWaterMark(ctx, []cursor.PartitionID{0}, false)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestNewFetcherValidation(t *testing.T) {
	if _, err := NewFetcher(nil, "events", 0, 0); err == nil {
		t.Error("nil client should fail")
	}
	if _, err := NewFetcher(&fakeLookup{}, "", 0, 0); err == nil {
		t.Error("empty topic should fail")
	}
}

// keep the narrow seam honest: sarama.Client must still satisfy it.
var _ offsetLookup = sarama.Client(nil)
