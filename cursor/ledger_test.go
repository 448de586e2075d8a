package cursor

import (
	"testing"

	"StreamCursor/tools/errs"
)

func TestInitialLedger(t *testing.T) {
	ledger, err := InitialLedger([]PartitionID{0, 1, 2})
	if err != nil {
		t.Fatalf("InitialLedger failed: %v", err)
	}
	if ledger.BatchID != 0 {
		t.Errorf("initial batch id = %d, want 0", ledger.BatchID)
	}
	for p, prog := range ledger.Offsets {
		if prog != NotStarted {
			t.Errorf("partition %d = %+v, want not-started sentinel", p, prog)
		}
	}
}

func TestInitialLedgerRejectsBadPartitionSets(t *testing.T) {
	cases := []struct {
		name       string
		partitions []PartitionID
	}{
		{"empty", nil},
		{"negative", []PartitionID{0, -1}},
		{"duplicate", []PartitionID{0, 1, 1}},
	}
	for _, tc := range cases {
		_, err := InitialLedger(tc.partitions)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !errs.ErrInvalidConfiguration.Is(err) {
			t.Errorf("%s: got %v, want invalid configuration", tc.name, err)
		}
	}
}

func TestNewLedgerRequiresCompleteSet(t *testing.T) {
	if _, err := NewLedger(3, nil); err == nil {
		t.Fatal("expected error for empty offsets")
	}
}

func TestEqualOffsetsIgnoresBatchID(t *testing.T) {
	a, _ := NewLedger(1, map[PartitionID]PartitionProgress{0: {10, 10}, 1: {20, 20}})
	b, _ := NewLedger(9, map[PartitionID]PartitionProgress{0: {10, 10}, 1: {20, 20}})
	if !a.EqualOffsets(b) {
		t.Error("ledgers with identical offsets should compare equal")
	}

	c, _ := NewLedger(1, map[PartitionID]PartitionProgress{0: {10, 10}, 1: {21, 20}})
	if a.EqualOffsets(c) {
		t.Error("ledgers with different offsets should not compare equal")
	}
}

func TestCloneIsolation(t *testing.T) {
	a, _ := NewLedger(1, map[PartitionID]PartitionProgress{0: {10, 10}})
	b := a.Clone()
	b.Offsets[0] = PartitionProgress{99, 99}
	if a.Offsets[0].Offset != 10 {
		t.Error("mutating a clone leaked into the original")
	}
}

func TestCeilingTag(t *testing.T) {
	snap := NewCeiling(map[PartitionID]PartitionProgress{0: {100, 100}})
	if !snap.IsCeiling() {
		t.Error("ceiling snapshot must carry the sentinel batch id")
	}
	regular, _ := NewLedger(7, map[PartitionID]PartitionProgress{0: {100, 100}})
	if regular.IsCeiling() {
		t.Error("regular ledger must not be tagged as ceiling")
	}
}

func TestPartitionsOrdered(t *testing.T) {
	ledger, _ := NewLedger(0, map[PartitionID]PartitionProgress{3: {}, 1: {}, 2: {}, 0: {}})
	got := ledger.Partitions()
	for i, p := range got {
		if p != PartitionID(i) {
			t.Fatalf("Partitions() = %v, want ascending order", got)
		}
	}
}
