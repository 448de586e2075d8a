package broker

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"StreamCursor/cursor"
	"StreamCursor/logger"
	"StreamCursor/tools/errs"
)

// offsetLookup is the slice of sarama.Client the fetcher actually needs.
// Narrowed so tests can substitute a fake without a live broker.
type offsetLookup interface {
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
	RefreshMetadata(topics ...string) error
}

// Fetcher resolves the broker high-water mark for a fixed topic. It
// implements cursor.CeilingFetcher; the forceRetry hint doubles the
// attempt budget because a failure under force is fatal to the query.
type Fetcher struct {
	client   offsetLookup
	topic    string
	retryMax int
	backoff  time.Duration
}

func NewFetcher(client offsetLookup, topic string, retryMax int, backoff time.Duration) (*Fetcher, error) {
	if client == nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("nil broker client")
	}
	if topic == "" {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("empty topic")
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Fetcher{client: client, topic: topic, retryMax: retryMax, backoff: backoff}, nil
}

func (f *Fetcher) FetchHighWaterMark(ctx context.Context, partitions []cursor.PartitionID, forceRetry bool) (cursor.OffsetLedger, error) {
	attempts := f.retryMax + 1
	if forceRetry {
		attempts *= 2
	}

	var lastErr error
	backoff := f.backoff
	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Debug("retrying high water mark fetch",
				zap.String("topic", f.topic),
				zap.Int("attempt", i),
				zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return cursor.OffsetLedger{}, errs.ErrTransport.WrapMsg("fetch canceled", "cause", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			// Stale metadata is the usual cause of a failed offset
			// lookup after a leader change.
			if err := f.client.RefreshMetadata(f.topic); err != nil {
				lastErr = err
				continue
			}
		}

		snapshot, err := f.fetchOnce(partitions)
		if err != nil {
			lastErr = err
			continue
		}
		return snapshot, nil
	}
	return cursor.OffsetLedger{}, errs.ErrTransport.WrapMsg("high water mark fetch exhausted retries",
		"topic", f.topic, "attempts", attempts, "cause", lastErr)
}

func (f *Fetcher) fetchOnce(partitions []cursor.PartitionID) (cursor.OffsetLedger, error) {
	offsets := make(map[cursor.PartitionID]cursor.PartitionProgress, len(partitions))
	for _, p := range partitions {
		next, err := f.client.GetOffset(f.topic, int32(p), sarama.OffsetNewest)
		if err != nil {
			return cursor.OffsetLedger{}, errs.WrapMsg(err, "getOffset failed", "topic", f.topic, "partition", p)
		}
		// GetOffset(OffsetNewest) is the offset the next record will get;
		// the last available position is one behind. An empty partition
		// yields the not-started sentinel. This transport assigns
		// sequence numbers equal to log offsets.
		last := next - 1
		if last < 0 {
			offsets[p] = cursor.NotStarted
			continue
		}
		offsets[p] = cursor.PartitionProgress{Offset: last, SequenceNumber: last}
	}
	return cursor.NewCeiling(offsets), nil
}
