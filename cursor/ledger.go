package cursor

import (
	"math"
	"sort"

	"StreamCursor/tools/errs"
)

// PartitionID identifies one partition of one named event stream.
type PartitionID int32

// PartitionProgress is the last (offset, sequence number) pair fully
// accounted for in one partition. Offset and SequenceNumber are distinct
// broker namespaces and are never interchangeable.
type PartitionProgress struct {
	Offset         int64 `json:"offset"`
	SequenceNumber int64 `json:"sequenceNumber"`
}

const (
	// SequenceUnknown marks a batch target whose offset was produced by
	// rate clamping rather than echoed from the broker ceiling. The
	// data-plane reader backfills the real sequence number when it reads
	// up to the target.
	SequenceUnknown int64 = -1

	// CeilingBatchID tags a high-water-mark snapshot so it can never be
	// mistaken for a consumption checkpoint.
	CeilingBatchID int64 = math.MaxInt64
)

// NotStarted is the sentinel progress for a partition that has not been
// consumed yet. Only the full pair is a sentinel: a valid offset paired
// with a -1 sequence number means the sequence number is unknown.
var NotStarted = PartitionProgress{Offset: -1, SequenceNumber: -1}

// OffsetLedger is an immutable snapshot of per-partition consumption
// progress tagged with the host's batch identifier. All transitions
// produce a new ledger.
type OffsetLedger struct {
	BatchID int64                             `json:"batchId"`
	Offsets map[PartitionID]PartitionProgress `json:"offsets"`
}

// NewLedger builds a ledger over the complete partition set. A nil or
// partial offsets map is a programming error.
func NewLedger(batchID int64, offsets map[PartitionID]PartitionProgress) (OffsetLedger, error) {
	if len(offsets) == 0 {
		return OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("ledger requires a non-empty partition set")
	}
	for p := range offsets {
		if p < 0 {
			return OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("negative partition id", "partition", p)
		}
	}
	return OffsetLedger{BatchID: batchID, Offsets: cloneOffsets(offsets)}, nil
}

// InitialLedger is the batch-0 all-sentinel ledger held at source
// construction; the first planned batch carries id 1.
func InitialLedger(partitions []PartitionID) (OffsetLedger, error) {
	if len(partitions) == 0 {
		return OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("empty partition set")
	}
	offsets := make(map[PartitionID]PartitionProgress, len(partitions))
	for _, p := range partitions {
		if p < 0 {
			return OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("negative partition id", "partition", p)
		}
		if _, dup := offsets[p]; dup {
			return OffsetLedger{}, errs.ErrInvalidConfiguration.WrapMsg("duplicate partition id", "partition", p)
		}
		offsets[p] = NotStarted
	}
	return OffsetLedger{BatchID: 0, Offsets: offsets}, nil
}

// NewCeiling tags a broker high-water-mark snapshot with the sentinel
// batch id. Ceilings are target bounds, never consumption checkpoints.
func NewCeiling(offsets map[PartitionID]PartitionProgress) OffsetLedger {
	return OffsetLedger{BatchID: CeilingBatchID, Offsets: cloneOffsets(offsets)}
}

// IsCeiling reports whether the ledger is a high-water-mark snapshot.
func (l OffsetLedger) IsCeiling() bool {
	return l.BatchID == CeilingBatchID
}

// EqualOffsets is structural equality over the offsets map, ignoring the
// batch id. Used for stall detection.
func (l OffsetLedger) EqualOffsets(other OffsetLedger) bool {
	if len(l.Offsets) != len(other.Offsets) {
		return false
	}
	for p, prog := range l.Offsets {
		o, ok := other.Offsets[p]
		if !ok || o != prog {
			return false
		}
	}
	return true
}

// Clone returns a deep copy; ledgers hand out copies so callers can never
// mutate a committed snapshot through the shared map.
func (l OffsetLedger) Clone() OffsetLedger {
	return OffsetLedger{BatchID: l.BatchID, Offsets: cloneOffsets(l.Offsets)}
}

// Partitions returns the tracked partition ids in ascending order.
func (l OffsetLedger) Partitions() []PartitionID {
	out := make([]PartitionID, 0, len(l.Offsets))
	for p := range l.Offsets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CoversSame reports whether both ledgers track exactly the same
// partition set.
func (l OffsetLedger) CoversSame(other OffsetLedger) bool {
	if len(l.Offsets) != len(other.Offsets) {
		return false
	}
	for p := range l.Offsets {
		if _, ok := other.Offsets[p]; !ok {
			return false
		}
	}
	return true
}

func cloneOffsets(in map[PartitionID]PartitionProgress) map[PartitionID]PartitionProgress {
	out := make(map[PartitionID]PartitionProgress, len(in))
	for p, prog := range in {
		out[p] = prog
	}
	return out
}
