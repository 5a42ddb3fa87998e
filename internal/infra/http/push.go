package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"conveyor/internal/domain"

	"github.com/gin-gonic/gin"
)

// Push endpoints receive bus deliveries. The response status drives the
// broker's redelivery decision:
//   - 2xx acknowledges the delivery. A malformed envelope is acked with 204
//     because redelivering it can never succeed; a stage fault is acked with
//     200 because the fault envelope has already been published onward.
//   - 5xx leaves the delivery unacked so the broker retries it later. Only
//     infrastructure failures (bus outage, store outage before any fault was
//     raised) take this path.
func (s *Server) handlePushIntake(c *gin.Context) {
	s.handleStagePush(c, func(ctx context.Context, env domain.Envelope, _ string) error {
		return s.transfer.Handle(ctx, env)
	})
}

func (s *Server) handlePushTransferDone(c *gin.Context) {
	s.handleStagePush(c, func(ctx context.Context, env domain.Envelope, _ string) error {
		return s.router.HandleTransferDone(ctx, env)
	})
}

func (s *Server) handlePushComputeStart(c *gin.Context) {
	s.handleStagePush(c, func(ctx context.Context, env domain.Envelope, deliveryID string) error {
		return s.compute.Handle(ctx, env, deliveryID)
	})
}

func (s *Server) handlePushComputeDone(c *gin.Context) {
	s.handleStagePush(c, func(ctx context.Context, env domain.Envelope, _ string) error {
		return s.emit.Handle(ctx, env)
	})
}

// handlePushFault decodes best-effort: a fault envelope may have been raised
// before the envelope was fully populated, and the sink salvages what it can.
func (s *Server) handlePushFault(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	env, deliveryID := domain.DecodePushBestEffort(body)
	if err := s.faultSink.Handle(c.Request.Context(), env); err != nil {
		s.log.Error("fault sink failed", "delivery_id", deliveryID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleStagePush(c *gin.Context, handle func(context.Context, domain.Envelope, string) error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "unreadable_body", Message: err.Error()})
		return
	}
	env, deliveryID, err := domain.DecodePush(body)
	if err != nil {
		s.log.Warn("dropping malformed delivery", "error", err)
		c.Status(http.StatusNoContent)
		return
	}

	err = handle(c.Request.Context(), env, deliveryID)
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		// Fault already published onward; the delivery is done.
		c.Status(http.StatusOK)
		return
	}
	s.log.Error("stage handler failed",
		"task_id", env.TaskID,
		"delivery_id", deliveryID,
		"error", err)
	c.Status(http.StatusInternalServerError)
}
