package dispatch

import (
	"errors"
	"net/http"
	"strings"

	"github.com/raine/wardrobe/internal/remote"
)

// FailureClass groups primary path failures. Every class triggers the same
// fallback; the class is recorded for logs and metrics.
type FailureClass string

const (
	ClassSchemaMismatch   FailureClass = "schema_mismatch"
	ClassAuthFailure      FailureClass = "auth_failure"
	ClassPermissionDenied FailureClass = "permission_denied"
	ClassUnknown          FailureClass = "unknown"
)

// Structured store error codes.
var codeClasses = map[string]FailureClass{
	"42501":    ClassPermissionDenied, // insufficient_privilege, row-level security
	"42703":    ClassSchemaMismatch,   // undefined_column
	"42P01":    ClassSchemaMismatch,   // undefined_table
	"23505":    ClassSchemaMismatch,   // unique_violation
	"PGRST204": ClassSchemaMismatch,   // column not in schema cache
	"PGRST301": ClassAuthFailure,      // JWT invalid or expired
	"PGRST302": ClassAuthFailure,      // anonymous access disabled
	"PGRST303": ClassAuthFailure,      // JWT claims invalid
}

// Message vocabulary, checked in order when no structured code matched.
var messageClasses = []struct {
	class    FailureClass
	keywords []string
}{
	{ClassSchemaMismatch, []string{"column", "schema cache", "does not exist", "duplicate key", "already exists", "conflict"}},
	{ClassAuthFailure, []string{"jwt", "auth", "api key", "apikey", "session", "token"}},
	{ClassPermissionDenied, []string{"row-level security", "row level security", "permission denied", "violates"}},
}

// Classify maps a primary path failure to a FailureClass. A structured code
// from the store wins over message matching.
func Classify(err error) FailureClass {
	if err == nil {
		return ""
	}

	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		if class, ok := codeClasses[remoteErr.Code]; ok {
			return class
		}
	}

	msg := strings.ToLower(err.Error())
	for _, mc := range messageClasses {
		for _, kw := range mc.keywords {
			if strings.Contains(msg, kw) {
				return mc.class
			}
		}
	}

	if remoteErr != nil {
		switch remoteErr.Status {
		case http.StatusUnauthorized:
			return ClassAuthFailure
		case http.StatusForbidden:
			return ClassPermissionDenied
		}
	}
	return ClassUnknown
}
