package schedule

import (
	"fmt"
	"strings"

	"cart-meal-planner/internal/meal"
)

type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
)

// Days is the planning week in grid order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// SlotTypes is the per-day grid order.
var SlotTypes = []meal.Kind{meal.KindMeal, meal.KindSnack}

// ParseDay accepts full names or three-letter abbreviations in any case.
func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Days {
		if s == string(d) || (len(s) >= 3 && strings.HasPrefix(string(d), s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown day %q", ErrUnknownSlot, s)
}

func (d Day) Short() string {
	return strings.ToUpper(string(d[:1])) + string(d[1:3])
}

// SlotID addresses one cell of the grid.
type SlotID struct {
	Day  Day       `json:"day"`
	Type meal.Kind `json:"type"`
}

func (id SlotID) String() string {
	return fmt.Sprintf("%s %s", id.Day, id.Type)
}

func ParseSlotID(day, slotType string) (SlotID, error) {
	d, err := ParseDay(day)
	if err != nil {
		return SlotID{}, err
	}
	k, ok := meal.ParseKind(strings.ToLower(strings.TrimSpace(slotType)))
	if !ok {
		return SlotID{}, fmt.Errorf("%w: unknown slot type %q", ErrUnknownSlot, slotType)
	}
	return SlotID{Day: d, Type: k}, nil
}

// Slot is one cell. Meal is nil when the slot is empty.
type Slot struct {
	Day    Day             `json:"day"`
	Type   meal.Kind       `json:"type"`
	Meal   *meal.Candidate `json:"meal,omitempty"`
	Locked bool            `json:"locked"`
}

func (s Slot) ID() SlotID { return SlotID{Day: s.Day, Type: s.Type} }

func (s Slot) Empty() bool { return s.Meal == nil }

// EmptyGrid returns the ten unlocked empty slots in grid order.
func EmptyGrid() []Slot {
	slots := make([]Slot, 0, len(Days)*len(SlotTypes))
	for _, d := range Days {
		for _, t := range SlotTypes {
			slots = append(slots, Slot{Day: d, Type: t})
		}
	}
	return slots
}

func cloneSlots(slots []Slot) []Slot {
	if slots == nil {
		return nil
	}
	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = s
		out[i].Meal = s.Meal.Clone()
	}
	return out
}
