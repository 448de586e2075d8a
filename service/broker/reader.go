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

// Record is one event delivered by the data plane.
type Record struct {
	Partition      cursor.PartitionID
	Offset         int64
	SequenceNumber int64
	Key            []byte
	Value          []byte
	Timestamp      time.Time
}

// partitionSource is the slice of sarama.Consumer the reader needs.
type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (sarama.PartitionConsumer, error)
}

// Reader is the data-plane collaborator: it materializes the records
// between two ledgers. Offset gaps (retention or compaction eating
// records the cursor had not consumed) are fatal or logged according to
// the fail-on-data-loss policy; they are never silently corrected.
type Reader struct {
	consumer       partitionSource
	topic          string
	failOnDataLoss bool
	receiveTimeout time.Duration
}

func NewReader(consumer partitionSource, topic string, failOnDataLoss bool, receiveTimeout time.Duration) (*Reader, error) {
	if consumer == nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("nil consumer")
	}
	if topic == "" {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("empty topic")
	}
	if receiveTimeout <= 0 {
		receiveTimeout = 60 * time.Second
	}
	return &Reader{
		consumer:       consumer,
		topic:          topic,
		failOnDataLoss: failOnDataLoss,
		receiveTimeout: receiveTimeout,
	}, nil
}

// ReadBetween returns every record in (start, end] per partition, plus a
// resolved copy of the end ledger: a clamped target whose sequence number
// was unknown at planning time gets the sequence number of the last
// record actually delivered at its offset.
func (r *Reader) ReadBetween(ctx context.Context, start, end cursor.OffsetLedger) ([]Record, cursor.OffsetLedger, error) {
	if !start.CoversSame(end) {
		return nil, cursor.OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("start and end ledgers track different partitions")
	}

	resolved := end.Clone()
	var records []Record
	for _, p := range end.Partitions() {
		from := start.Offsets[p].Offset + 1
		to := end.Offsets[p].Offset
		if to < from {
			continue
		}

		delivered, last, err := r.readPartition(ctx, p, from, to)
		if err != nil {
			return nil, cursor.OffsetLedger{}, err
		}
		records = append(records, delivered...)

		if resolved.Offsets[p].SequenceNumber == cursor.SequenceUnknown && last != nil && last.Offset == to {
			resolved.Offsets[p] = cursor.PartitionProgress{Offset: to, SequenceNumber: last.SequenceNumber}
		}
	}
	return records, resolved, nil
}

func (r *Reader) readPartition(ctx context.Context, p cursor.PartitionID, from, to int64) ([]Record, *Record, error) {
	pc, err := r.consumer.ConsumePartition(r.topic, int32(p), from)
	if err == sarama.ErrOffsetOutOfRange {
		if err := r.onGap(p, from, -1); err != nil {
			return nil, nil, err
		}
		pc, err = r.consumer.ConsumePartition(r.topic, int32(p), sarama.OffsetOldest)
		if err != nil {
			return nil, nil, errs.ErrTransport.WrapMsg("consume failed after gap", "partition", p, "cause", err)
		}
	} else if err != nil {
		return nil, nil, errs.ErrTransport.WrapMsg("consume failed", "partition", p, "offset", from, "cause", err)
	}
	defer func() { _ = pc.Close() }()

	var out []Record
	var last *Record
	expected := from
	timeout := time.NewTimer(r.receiveTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, errs.ErrTransport.WrapMsg("read canceled", "partition", p, "cause", ctx.Err())
		case <-timeout.C:
			return nil, nil, errs.ErrTransport.WrapMsg("timed out waiting for records",
				"partition", p, "expected", expected, "end", to)
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil, nil, errs.ErrTransport.WrapMsg("partition stream closed", "partition", p)
			}
			if msg.Offset > expected {
				if err := r.onGap(p, expected, msg.Offset); err != nil {
					return nil, nil, err
				}
			}
			if msg.Offset > to {
				return out, last, nil
			}
			rec := Record{
				Partition:      p,
				Offset:         msg.Offset,
				SequenceNumber: msg.Offset,
				Key:            msg.Key,
				Value:          msg.Value,
				Timestamp:      msg.Timestamp,
			}
			out = append(out, rec)
			last = &out[len(out)-1]
			if msg.Offset >= to {
				return out, last, nil
			}
			expected = msg.Offset + 1
		}
	}
}

// onGap applies the fail-on-data-loss policy. next < 0 means the gap size
// is unknown (the requested start offset no longer exists at all).
func (r *Reader) onGap(p cursor.PartitionID, expected, next int64) error {
	if r.failOnDataLoss {
		return errs.ErrDataLoss.WrapMsg("records no longer available",
			"partition", p, "expected", expected, "next", next)
	}
	logger.Warn("offset gap detected, continuing per failOnDataLoss=false",
		zap.Int32("partition", int32(p)),
		zap.Int64("expected", expected),
		zap.Int64("next", next))
	return nil
}
