package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// prompt for reconnection or abort.
type Kind string

const (
	ProviderMissing          Kind = "PROVIDER_MISSING"
	UserRejected             Kind = "USER_REJECTED"
	WrongNetwork             Kind = "WRONG_NETWORK"
	SwitchRejected           Kind = "SWITCH_REJECTED"
	ChainRegistrationFailed  Kind = "CHAIN_REGISTRATION_FAILED"
	SessionInvalidated       Kind = "SESSION_INVALIDATED"
	RelayRequestFailed       Kind = "RELAY_REQUEST_FAILED"
	ValidationFailed         Kind = "VALIDATION_FAILED"
	TransferSubmissionFailed Kind = "TRANSFER_SUBMISSION_FAILED"
	TransferNotConfirmed     Kind = "TRANSFER_NOT_CONFIRMED"
	BalanceReadFailed        Kind = "BALANCE_READ_FAILED"
)

// Error is the error type returned by every bridge operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// New builds an error of the given kind from a formatted message.
func New(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  fmt.Errorf(format, args...),
	}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
