package ledger

import "errors"

// Error kinds surfaced by the engine. Callers branch with errors.Is; every
// returned error wraps exactly one of these when it is a domain failure.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoPosition         = errors.New("no position")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
)

// Kind returns the error kind wrapped by err, or nil for infrastructure errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrDuplicateOperation,
		ErrInsufficientFunds,
		ErrNoPosition,
		ErrInvalidOperation,
		ErrConflict,
		ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindLabel is a short metric/log label for err's kind.
func KindLabel(err error) string {
	switch Kind(err) {
	case ErrInvalidInput:
		return "invalid_input"
	case ErrDuplicateOperation:
		return "duplicate"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrNoPosition:
		return "no_position"
	case ErrInvalidOperation:
		return "invalid_operation"
	case ErrConflict:
		return "conflict"
	case ErrNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
