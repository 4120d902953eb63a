package httpapi

import (
	"context"
	"errors"

	"cart-meal-planner/internal/allocation"
	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/pantry"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/schedule"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Success returns a successful response
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Accepted acknowledges work that continues in the background.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success: true,
		Data:    data,
	})
}

// Error returns an error response
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// ErrorHandler is the Fiber fallback for errors handlers return unhandled.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// domainError maps planner failures to a status, a machine code and, where a
// caller can act on it, a payload.
func domainError(c *fiber.Ctx, err error) error {
	var conflict *planner.VersionConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(APIResponse{
			Error: err.Error(),
			Code:  "version_conflict",
			Data:  conflict.Current,
		})
	}

	var confirm *schedule.ConfirmationError
	if errors.As(err, &confirm) {
		return c.Status(fiber.StatusPreconditionRequired).JSON(APIResponse{
			Error: err.Error(),
			Code:  "confirmation_required",
			Data:  fiber.Map{"locked_slots": confirm.LockedSlots},
		})
	}

	var exhausted *pantry.PoolExhaustedError
	if errors.As(err, &exhausted) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(APIResponse{
			Error: err.Error(),
			Code:  "pool_exhausted",
			Data: fiber.Map{
				"ingredient": exhausted.Ingredient,
				"requested":  exhausted.Requested,
				"available":  exhausted.Available,
			},
		})
	}

	status, code := classify(err)
	return c.Status(status).JSON(APIResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrSlotLocked):
		return fiber.StatusLocked, "slot_locked"
	case errors.Is(err, planner.ErrRegenerationRunning):
		return fiber.StatusConflict, "regeneration_running"
	case errors.Is(err, planner.ErrPlanExists):
		return fiber.StatusConflict, "plan_exists"
	case errors.Is(err, planner.ErrPlanNotFound):
		return fiber.StatusNotFound, "plan_not_found"
	case errors.Is(err, planner.ErrNoRegeneration):
		return fiber.StatusNotFound, "no_regeneration"
	case errors.Is(err, pantry.ErrPoolExhausted),
		errors.Is(err, allocation.ErrNoProtein),
		errors.Is(err, allocation.ErrProteinExcluded),
		errors.Is(err, allocation.ErrTooFewSupporting),
		errors.Is(err, allocation.ErrNoPoolIngredients):
		return fiber.StatusUnprocessableEntity, "pool_exhausted"
	case errors.Is(err, schedule.ErrNothingToUndo):
		return fiber.StatusConflict, "nothing_to_undo"
	case errors.Is(err, meal.ErrInvalidSketch),
		errors.Is(err, schedule.ErrUnknownSlot),
		errors.Is(err, schedule.ErrEmptySlot),
		errors.Is(err, planner.ErrEmptyCart),
		errors.Is(err, pantry.ErrInvalidQuantity),
		errors.Is(err, pantry.ErrUnitMismatch),
		errors.Is(err, cart.ErrNoQuantity),
		errors.Is(err, cart.ErrNoItems):
		return fiber.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable, "timeout"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}
