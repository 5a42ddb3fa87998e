package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestGate_FreshThenDuplicate(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, nil)
	ctx := context.Background()

	if got := gate.Admit(ctx, "msg-1", "proj-dev"); got != AdmissionFresh {
		t.Fatalf("first admit = %v, want fresh", got)
	}
	if got := gate.Admit(ctx, "msg-1", "proj-dev"); got != AdmissionDuplicate {
		t.Fatalf("second admit = %v, want duplicate", got)
	}
}

func TestGate_KeysArePartitionedByProject(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, nil)
	ctx := context.Background()

	if got := gate.Admit(ctx, "msg-1", "proj-a"); got != AdmissionFresh {
		t.Fatalf("proj-a admit = %v, want fresh", got)
	}
	if got := gate.Admit(ctx, "msg-1", "proj-b"); got != AdmissionFresh {
		t.Fatalf("proj-b admit = %v, want fresh", got)
	}
}

func TestGate_RecordsBeforeReturningFresh(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, nil)

	gate.Admit(context.Background(), "msg-1", "proj-dev")
	if len(ledger.records) != 1 || ledger.records[0] != "proj-dev:msg-1" {
		t.Fatalf("expected delivery id recorded on admission, got %v", ledger.records)
	}
}

func TestGate_LedgerOutageDegradesToFresh(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seenErr = errors.New("connection refused")
	gate := NewGate(ledger, nil)

	if got := gate.Admit(context.Background(), "msg-1", "proj-dev"); got != AdmissionFresh {
		t.Fatalf("admit during outage = %v, want fresh", got)
	}
}

func TestGate_RecordFailureStillFresh(t *testing.T) {
	ledger := newFakeLedger()
	ledger.recordErr = errors.New("write failed")
	gate := NewGate(ledger, nil)

	if got := gate.Admit(context.Background(), "msg-1", "proj-dev"); got != AdmissionFresh {
		t.Fatalf("admit with failing record = %v, want fresh", got)
	}
}

func TestGate_EmptyDeliveryIDIsAlwaysFresh(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := gate.Admit(ctx, "", "proj-dev"); got != AdmissionFresh {
			t.Fatalf("admit with empty id = %v, want fresh", got)
		}
	}
	if len(ledger.records) != 0 {
		t.Fatalf("empty delivery ids must not be recorded, got %v", ledger.records)
	}
}
