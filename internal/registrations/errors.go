package registrations

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound: no such registration, or one the caller may not see.
	ErrNotFound = errors.New("registration not found")
	// ErrConflict: endpoint URL already registered, in any status.
	ErrConflict = errors.New("endpoint url already registered")
	// ErrInvalidTransition: review of a non-pending registration, or an
	// invalid target status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden: caller lacks the admin role, or is reviewing their
	// own submission.
	ErrForbidden = errors.New("operation not permitted")
	// ErrStoreUnavailable: the persistence layer failed; surfaced to the
	// caller without retries.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries per-field violations from submit validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}
