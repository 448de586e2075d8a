package cursor

import (
	"context"

	"StreamCursor/logger"
	"StreamCursor/tools/errs"

	"go.uber.org/zap"
)

// DefaultMaxRatePerPartition bounds how many records a single batch may
// advance per partition when no override is configured.
const DefaultMaxRatePerPartition int64 = 1000

// CeilingFetcher is the broker collaborator. forceRetry hints the
// transport retry policy that a failure this cycle is fatal to the query.
type CeilingFetcher interface {
	FetchHighWaterMark(ctx context.Context, partitions []PartitionID, forceRetry bool) (OffsetLedger, error)
}

// PlannerOptions carries the tunables of a Planner. Zero values take
// defaults in NewPlanner.
type PlannerOptions struct {
	// MaxRatePerPartition caps per-partition batch advance. Default 1000.
	MaxRatePerPartition int64
	// Initial seeds the committed ledger, e.g. from a checkpoint store.
	// When nil the planner starts from the batch-0 all-sentinel ledger.
	Initial *OffsetLedger
}

// Planner coordinates batch boundaries for one source instance. It is
// single-writer: the host calls PlanNextBatch and Commit strictly
// sequentially, so no internal locking is needed.
type Planner struct {
	fetcher    CeilingFetcher
	partitions []PartitionID
	maxRate    int64

	current     OffsetLedger
	lastCeiling *OffsetLedger
	staleCycles int
}

func NewPlanner(fetcher CeilingFetcher, partitions []PartitionID, opt PlannerOptions) (*Planner, error) {
	if fetcher == nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("nil ceiling fetcher")
	}
	rate := opt.MaxRatePerPartition
	if rate == 0 {
		rate = DefaultMaxRatePerPartition
	}
	if rate < 0 {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("maxRatePerPartition must be positive", "rate", rate)
	}
	initial, err := InitialLedger(partitions)
	if err != nil {
		return nil, err
	}
	if opt.Initial != nil {
		if opt.Initial.IsCeiling() {
			return nil, errs.ErrInvalidConfiguration.WrapMsg("cannot seed from a ceiling snapshot")
		}
		if !opt.Initial.CoversSame(initial) {
			return nil, errs.ErrInvalidConfiguration.WrapMsg("seed ledger partition set mismatch",
				"want", len(initial.Offsets), "got", len(opt.Initial.Offsets))
		}
		initial = opt.Initial.Clone()
	}
	return &Planner{
		fetcher:    fetcher,
		partitions: initial.Partitions(),
		maxRate:    rate,
		current:    initial,
	}, nil
}

// Current returns a copy of the last committed ledger.
func (p *Planner) Current() OffsetLedger {
	return p.current.Clone()
}

// PlanNextBatch computes the next batch target: it refreshes the broker
// high-water mark, tolerating a failed fetch only if the previous cycle
// made visible progress, then clamps each partition's advance to the
// configured rate. The returned ledger is not committed; the host calls
// Commit once the batch is durably recorded.
func (p *Planner) PlanNextBatch(ctx context.Context) (OffsetLedger, error) {
	// A failed fetch may only fall back to the cached ceiling when that
	// ceiling is ahead of the committed ledger. Serving a stalled ceiling
	// again would let the host believe a dead stream is healthy.
	forceRetry := p.lastCeiling == nil || p.lastCeiling.EqualOffsets(p.current)

	ceiling, err := p.fetcher.FetchHighWaterMark(ctx, p.partitions, forceRetry)
	switch {
	case err != nil && forceRetry:
		p.staleCycles++
		return OffsetLedger{}, errs.ErrCeilingUnavailable.WrapMsg("fetch failed with no usable ceiling",
			"batch", p.current.BatchID, "cause", err)
	case err != nil:
		p.staleCycles++
		ceiling = p.lastCeiling.Clone()
		logger.Warn("high water mark fetch failed, reusing last ceiling",
			zap.Int64("batch", p.current.BatchID),
			zap.Int("staleCycles", p.staleCycles),
			zap.Int("partitions", len(p.partitions)),
			zap.Error(err))
	default:
		if ceiling.EqualOffsets(p.current) {
			p.staleCycles++
		} else {
			p.staleCycles = 0
		}
		snap := ceiling.Clone()
		snap.BatchID = CeilingBatchID
		p.lastCeiling = &snap
		ceiling = snap
	}

	targets := make(map[PartitionID]PartitionProgress, len(p.partitions))
	for _, part := range p.partitions {
		ceil, ok := ceiling.Offsets[part]
		if !ok {
			return OffsetLedger{}, errs.ErrCeilingUnavailable.WrapMsg("ceiling missing partition", "partition", part)
		}
		cur := p.current.Offsets[part]
		if ceil.Offset < cur.Offset {
			return OffsetLedger{}, errs.ErrNonMonotonicCeiling.WrapMsg("broker offset behind ledger",
				"partition", part, "ceiling", ceil.Offset, "current", cur.Offset)
		}
		if cur.SequenceNumber >= 0 && ceil.SequenceNumber < cur.SequenceNumber {
			return OffsetLedger{}, errs.ErrNonMonotonicCeiling.WrapMsg("broker sequence number behind ledger",
				"partition", part, "ceiling", ceil.SequenceNumber, "current", cur.SequenceNumber)
		}
		limit := cur.Offset + p.maxRate
		if ceil.Offset <= limit {
			targets[part] = ceil
		} else {
			targets[part] = PartitionProgress{Offset: limit, SequenceNumber: SequenceUnknown}
		}
	}

	return OffsetLedger{BatchID: p.current.BatchID + 1, Offsets: targets}, nil
}

// Commit atomically replaces the committed ledger with a planned one.
// The ledger must carry the next batch id in sequence and must not move
// any partition backward.
func (p *Planner) Commit(ledger OffsetLedger) error {
	if ledger.BatchID != p.current.BatchID+1 {
		return errs.ErrInvalidConfiguration.WrapMsg("commit out of sequence",
			"want", p.current.BatchID+1, "got", ledger.BatchID)
	}
	if !ledger.CoversSame(p.current) {
		return errs.ErrInvalidConfiguration.WrapMsg("commit ledger partition set mismatch")
	}
	for part, prog := range ledger.Offsets {
		cur := p.current.Offsets[part]
		if prog.Offset < cur.Offset {
			return errs.ErrInvalidConfiguration.WrapMsg("commit would move offset backward",
				"partition", part, "current", cur.Offset, "commit", prog.Offset)
		}
		if prog.SequenceNumber >= 0 && cur.SequenceNumber >= 0 && prog.SequenceNumber < cur.SequenceNumber {
			return errs.ErrInvalidConfiguration.WrapMsg("commit would move sequence number backward",
				"partition", part, "current", cur.SequenceNumber, "commit", prog.SequenceNumber)
		}
	}
	p.current = ledger.Clone()
	return nil
}
