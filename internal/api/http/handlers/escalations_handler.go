package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-request-desk/internal/service"
	"github.com/spec-kit/service-request-desk/internal/worker"
	apperrors "github.com/spec-kit/service-request-desk/pkg/util"
)

// SweepRunner runs one guarded escalation sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (service.SweepResult, error)
}

// EscalationsHandler exposes the manual sweep trigger.
type EscalationsHandler struct {
	runner SweepRunner
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(runner SweepRunner) *EscalationsHandler {
	return &EscalationsHandler{runner: runner}
}

// Sweep POST /admin/escalations/sweep.
func (h *EscalationsHandler) Sweep(c *fiber.Ctx) error {
	result, err := h.runner.RunOnce(c.UserContext())
	if err != nil {
		if errors.Is(err, worker.ErrSweepRunning) {
			return apperrors.NewConflict("an escalation sweep is already running", nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
