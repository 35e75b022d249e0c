// Package portal holds the complaint portal's domain logic: the role-gated
// session manager, audience-scoped ticket lists with optimistic upvotes,
// ticket submission and admin triage. It talks to backends only through the
// store, identity and storage interfaces.
package portal

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrRoleMismatch     = errors.New("account role does not match the selected role")
	ErrProfileNotFound  = errors.New("no profile exists for this account")
	ErrStoreUnavailable = errors.New("ticket store unavailable")
	ErrUpdate           = errors.New("ticket update rejected")
	ErrSubmission       = errors.New("ticket submission failed")
	ErrNoViewer         = errors.New("action requires a signed-in user")
)

// ValidationError reports input rejected before any backend call. Fields maps
// a field name to a human readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
