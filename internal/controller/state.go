package controller

import (
	"fmt"

	"github.com/nspcc-dev/student-roster/internal/roster"
)

// Status is the operation status of the controller.
type Status uint8

const (
	// StatusIdle means no operation is in flight.
	StatusIdle Status = iota
	// StatusBusy means an operation is in flight.
	StatusBusy
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == StatusBusy {
		return "busy"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "busy":
		*s = StatusBusy
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// PendingInput is the operator input of the last register and remove
// attempts. It is cleared by the successful operation only.
type PendingInput struct {
	RegisterID   string `json:"register_id"`
	RegisterName string `json:"register_name"`
	RemoveID     string `json:"remove_id"`
}

// State is an immutable view of the controller state.
type State struct {
	Roster        *roster.Roster
	Status        Status
	LastError     string
	LastErrorKind Kind
	Pending       PendingInput
}
