package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/raine/wardrobe/internal/remote"
	"github.com/stretchr/testify/assert"
)

func TestClassify_Messages(t *testing.T) {
	cases := []struct {
		msg  string
		want FailureClass
	}{
		{`new row violates row-level security policy for table "items"`, ClassPermissionDenied},
		{"permission denied for table items", ClassPermissionDenied},
		{`column "style" of relation "items" does not exist`, ClassSchemaMismatch},
		{"Could not find the 'metadata' column of 'items' in the schema cache", ClassSchemaMismatch},
		{`duplicate key value violates unique constraint "items_pkey"`, ClassSchemaMismatch},
		{"JWT expired", ClassAuthFailure},
		{"Invalid API key", ClassAuthFailure},
		{"Auth session missing!", ClassAuthFailure},
		{"connection reset by peer", ClassUnknown},
		{"", ClassUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(errors.New(tc.msg)), tc.msg)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, ClassPermissionDenied, Classify(errors.New("NEW ROW VIOLATES ROW-LEVEL SECURITY POLICY")))
}

func TestClassify_StructuredCodeWins(t *testing.T) {
	// The message alone would read as an auth failure.
	err := &remote.Error{Status: http.StatusForbidden, Code: "42501", Message: "token user lacks privilege"}
	assert.Equal(t, ClassPermissionDenied, Classify(err))

	wrapped := fmt.Errorf("insert: %w", &remote.Error{Status: http.StatusBadRequest, Code: "PGRST204", Message: "bad payload"})
	assert.Equal(t, ClassSchemaMismatch, Classify(wrapped))

	assert.Equal(t, ClassAuthFailure, Classify(&remote.Error{Status: http.StatusUnauthorized, Code: "PGRST301", Message: "expired"}))
}

func TestClassify_StatusWhenNothingElseMatches(t *testing.T) {
	assert.Equal(t, ClassAuthFailure, Classify(&remote.Error{Status: http.StatusUnauthorized, Message: "nope"}))
	assert.Equal(t, ClassPermissionDenied, Classify(&remote.Error{Status: http.StatusForbidden, Message: "nope"}))
	assert.Equal(t, ClassUnknown, Classify(&remote.Error{Status: http.StatusBadGateway, Message: "nope"}))
}

func TestClassify_NoRows(t *testing.T) {
	assert.Equal(t, ClassUnknown, Classify(ErrNoRows))
	assert.Equal(t, FailureClass(""), Classify(nil))
}
