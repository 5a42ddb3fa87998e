package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"conveyor/internal/domain"
)

// Handler consumes one envelope delivery. The delivery id is unique per
// publish, so redelivering the same envelope yields a different id.
type Handler func(ctx context.Context, env domain.Envelope, deliveryID string) error

// InProcess is a synchronous bus for local mode and tests: Publish runs the
// channel's subscribers inline before returning. A subscriber error is logged
// and does not fail the publish, matching at-least-once broker semantics where
// a failed push is simply redelivered later.
type InProcess struct {
	mu       sync.Mutex
	handlers map[domain.Channel][]Handler
	seq      int
	log      *slog.Logger
}

func NewInProcess(log *slog.Logger) *InProcess {
	return &InProcess{
		handlers: make(map[domain.Channel][]Handler),
		log:      log,
	}
}

func (b *InProcess) Subscribe(channel domain.Channel, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], h)
}

func (b *InProcess) Publish(ctx context.Context, channel domain.Channel, env domain.Envelope) error {
	b.mu.Lock()
	b.seq++
	deliveryID := fmt.Sprintf("local-%d", b.seq)
	subscribers := append([]Handler(nil), b.handlers[channel]...)
	b.mu.Unlock()

	for _, h := range subscribers {
		if err := h(ctx, env, deliveryID); err != nil {
			b.log.Warn("subscriber failed",
				"channel", string(channel),
				"delivery_id", deliveryID,
				"error", err)
		}
	}
	return nil
}
