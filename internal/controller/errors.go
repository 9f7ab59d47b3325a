package controller

import (
	"errors"
	"fmt"
)

// Kind classifies operation failures.
type Kind uint8

const (
	// KindNone is the kind of no error.
	KindNone Kind = iota
	// KindValidation marks input rejected locally before any network access.
	KindValidation
	// KindAuthorization marks failures to unlock the wallet account.
	KindAuthorization
	// KindBinding marks failures to bind the contract to a signer or to the
	// read-only connection.
	KindBinding
	// KindLedgerCall marks failed submission, execution fault and failed or
	// timed out confirmation.
	KindLedgerCall
	// KindBusy marks operations rejected because another one is in flight.
	KindBusy
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindBinding:
		return "binding"
	case KindLedgerCall:
		return "ledger_call"
	case KindBusy:
		return "busy"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for v := KindNone; v <= KindBusy; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// Op names a controller operation.
type Op string

// Supported operations.
const (
	OpRegister Op = "register"
	OpRemove   Op = "remove"
	OpRefresh  Op = "refresh"
)

func (op Op) action() string {
	switch op {
	case OpRegister:
		return "register student"
	case OpRemove:
		return "remove student"
	case OpRefresh:
		return "refresh roster"
	default:
		return string(op)
	}
}

// Error is the failure of a controller operation. Its message is the one kept
// as the last error.
type Error struct {
	Kind Kind
	Op   Op
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindValidation {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op.action(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrBusy is wrapped by errors of operations rejected because another one is
// in flight.
var ErrBusy = errors.New("another operation is in progress")

// Validation messages.
const (
	msgInvalidRegister = "Please enter a valid Student ID and Name."
	msgInvalidRemove   = "Please enter a valid Student ID to remove."
)

// KindOf returns the kind of err if it is an Error. KindNone is returned for
// nil errors, any other error counts as a failed ledger call.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindLedgerCall
}

func newError(kind Kind, op Op, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
