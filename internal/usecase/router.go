package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"conveyor/internal/domain"
)

// Router is the orchestration hop between transfer and compute: it consumes
// transfer-done and dispatches by task kind. It owns no business logic beyond
// the transition table.
type Router struct {
	bus Publisher
	log *slog.Logger
}

func NewRouter(bus Publisher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{bus: bus, log: log}
}

// HandleTransferDone routes a transferred envelope onward. A kind with no
// compute row is a contract violation and goes to the fault channel.
func (r *Router) HandleTransferDone(ctx context.Context, env domain.Envelope) error {
	channel, err := domain.DispatchAfterTransfer(env.TaskType)
	if err != nil {
		return publishFault(ctx, r.bus, r.log, env, domain.StageIntake, err)
	}
	if err := r.bus.Publish(ctx, channel, env); err != nil {
		return fmt.Errorf("dispatch to %s: %w", channel, err)
	}
	r.log.Info("envelope dispatched",
		slog.String("task_id", env.TaskID),
		slog.String("task_type", string(env.TaskType)),
		slog.String("channel", string(channel)))
	return nil
}

// publishFault converts a stage failure into a fault-path envelope and puts it
// on the fault channel. On success the returned error is the original failure
// so callers can log it; the fault envelope is the propagation mechanism. If
// the fault publish itself fails, the caller's fault was never propagated and
// the terminal response would be lost, so the publish error is returned
// instead — outside the stage-error taxonomy, which keeps the delivery unacked
// for redelivery.
func publishFault(ctx context.Context, bus Publisher, log *slog.Logger, env domain.Envelope, stage domain.Stage, cause error) error {
	faulted := env.Faulted(stage, cause)
	if err := bus.Publish(ctx, domain.ChannelFault, faulted); err != nil {
		log.Error("failed to publish fault envelope",
			slog.String("task_id", env.TaskID),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		return fmt.Errorf("publish fault for %s failure %v: %w", stage, cause, err)
	}
	log.Error("stage failed, envelope routed to fault",
		slog.String("task_id", env.TaskID),
		slog.String("stage", string(stage)),
		slog.String("error", cause.Error()))
	return cause
}
