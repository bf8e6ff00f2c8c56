package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUserOwnsExpenses protects users from deletion while expenses still
	// reference them.
	ErrUserOwnsExpenses = errors.New("user still owns expenses")
)

// FieldErrors carries one human-readable message per form field. It is the
// validation-error shape shared by the filter resolver, the domain validators
// and the HTTP form layer.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// AsFieldErrors unwraps err into FieldErrors when it is one.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
