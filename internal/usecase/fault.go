package usecase

import (
	"context"
	"log/slog"

	"conveyor/internal/domain"
)

// FaultResponse is the terminal error body delivered to the caller.
type FaultResponse struct {
	Status string    `json:"status"`
	Data   faultData `json:"data"`
}

type faultData struct {
	Reason string `json:"Reason"`
}

// FaultSink is the single place that writes a failure response to the
// caller's URL. It is the pipeline's leaf: it never publishes onward, so a
// fault can never loop back into the pipeline.
type FaultSink struct {
	callback CallbackPoster
	log      *slog.Logger
}

func NewFaultSink(callback CallbackPoster, log *slog.Logger) *FaultSink {
	if log == nil {
		log = slog.Default()
	}
	return &FaultSink{callback: callback, log: log}
}

// Handle delivers the fault to the output URL, best effort. The envelope may
// be partially formed; whatever fields survived are used. With no output URL
// there is nowhere left to report, so the fault is logged and swallowed.
func (f *FaultSink) Handle(ctx context.Context, env domain.Envelope) error {
	if env.OutputURL == "" {
		f.log.Error("fault envelope has no output url, dropping",
			slog.String("task_id", env.TaskID),
			slog.String("reason", env.ErrorMessage))
		return nil
	}

	response := FaultResponse{
		Status: "Error",
		Data:   faultData{Reason: env.ErrorMessage},
	}
	if err := f.callback.Post(ctx, env.OutputURL, response); err != nil {
		// Best-effort terminal notifier; no escalation path remains.
		f.log.Error("failed to deliver fault response",
			slog.String("task_id", env.TaskID),
			slog.String("output_url", env.OutputURL),
			slog.String("error", err.Error()))
		return nil
	}
	f.log.Info("fault response delivered",
		slog.String("task_id", env.TaskID),
		slog.Int("error_code", env.ErrorCode))
	return nil
}
