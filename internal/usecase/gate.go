package usecase

import (
	"context"
	"log/slog"
)

// Admission is the idempotency gate's verdict for one delivery.
type Admission int

const (
	AdmissionFresh Admission = iota
	AdmissionDuplicate
)

// Gate collapses redelivered messages before compute. The ledger is recorded
// before any side-effecting work starts, so a retry after a mid-compute crash
// cannot double-bill the job. A failing ledger degrades to Fresh: availability
// wins over perfect dedup.
type Gate struct {
	ledger Ledger
	log    *slog.Logger
}

func NewGate(ledger Ledger, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{ledger: ledger, log: log}
}

// Admit decides whether the delivery identified by deliveryID may enter
// compute. The key is partitioned by owner project so ledger tenants never
// collide.
func (g *Gate) Admit(ctx context.Context, deliveryID, ownerProject string) Admission {
	if deliveryID == "" {
		// Local transports may not assign delivery ids; nothing to dedup on.
		return AdmissionFresh
	}
	key := ownerProject + ":" + deliveryID

	seen, err := g.ledger.Seen(ctx, key)
	if err != nil {
		g.log.Warn("idempotency ledger unavailable, treating delivery as fresh",
			slog.String("delivery_id", deliveryID), slog.String("error", err.Error()))
		return AdmissionFresh
	}
	if seen {
		return AdmissionDuplicate
	}
	if err := g.ledger.Record(ctx, key); err != nil {
		g.log.Warn("failed to record delivery id, continuing as fresh",
			slog.String("delivery_id", deliveryID), slog.String("error", err.Error()))
	}
	return AdmissionFresh
}
