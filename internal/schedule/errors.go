package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrSlotLocked           = errors.New("slot is locked")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNothingToUndo        = errors.New("nothing to undo")
	ErrEmptySlot            = errors.New("slot is empty")
	ErrUnknownSlot          = errors.New("unknown slot")
)

// SlotLockedError names the locked slot a mutation tried to touch.
type SlotLockedError struct {
	Slot SlotID
}

func (e *SlotLockedError) Error() string {
	return fmt.Sprintf("slot %s is locked", e.Slot)
}

func (e *SlotLockedError) Unwrap() error { return ErrSlotLocked }

// ConfirmationError is returned by destructive operations run without
// explicit confirmation while locked slots exist.
type ConfirmationError struct {
	Operation   string
	LockedSlots []SlotID
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s would discard %d locked slot(s); confirmation required", e.Operation, len(e.LockedSlots))
}

func (e *ConfirmationError) Unwrap() error { return ErrConfirmationRequired }
