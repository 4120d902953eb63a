package regen

import (
	"errors"
	"fmt"

	"cart-meal-planner/internal/schedule"
)

var (
	ErrInsufficientMealCount  = errors.New("insufficient meal count")
	ErrGeneratorUnsatisfiable = errors.New("generator suggestion could not be fitted")
)

// InsufficientMealCountError reports that the pool supports fewer meals than
// were asked for.
type InsufficientMealCountError struct {
	Requested  int
	Achievable int
}

func (e *InsufficientMealCountError) Error() string {
	return fmt.Sprintf("requested %d meals but the pool supports %d", e.Requested, e.Achievable)
}

func (e *InsufficientMealCountError) Unwrap() error { return ErrInsufficientMealCount }

// GeneratorUnsatisfiableError reports a slot left empty after a retry.
type GeneratorUnsatisfiableError struct {
	Slot   schedule.SlotID
	Reason error
}

func (e *GeneratorUnsatisfiableError) Error() string {
	return fmt.Sprintf("no suggestion fits slot %s: %v", e.Slot, e.Reason)
}

func (e *GeneratorUnsatisfiableError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrGeneratorUnsatisfiable}
	}
	return []error{ErrGeneratorUnsatisfiable, e.Reason}
}
