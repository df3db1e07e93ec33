package lockservice

// Error provides constant error strings to the driver functions.
type Error string

func (e Error) Error() string { return string(e) }

// Constant errors.
// Rule of thumb, all errors start with a small letter and end with no full stop.
const (
	ErrIdentityMissing  = Error("caller identity not found")
	ErrStoreUnavailable = Error("store unavailable")
	ErrMissingScheme    = Error("missing pstr")
	ErrMissingPsaID     = Error("missing psaId")
)

// StoreError reports a failed store operation. It matches
// ErrStoreUnavailable with errors.Is and unwraps to the backend fault.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps a backend fault raised by op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return e.Op + ": " + ErrStoreUnavailable.Error() + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes every StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
