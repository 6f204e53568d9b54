package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NotFound(map[string]string{"uuid": "abc", "owned": "false"}, "record not found")
	assert.Equal(t, "NOT_FOUND: record not found [owned=false, uuid=abc]", err.Error())

	err = Conflict("display_name", "data source %q already exists", "Lab")
	assert.Equal(t, `CONFLICT: data source "Lab" already exists (field=display_name)`, err.Error())
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("aggregate: %w", Validation("empty aggregation types"))

	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsPermission(wrapped))
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsNotFound(nil))
}

func TestHelpers_Codes(t *testing.T) {
	cases := []struct {
		err  error
		code Code
		is   func(error) bool
	}{
		{Validation("x"), CodeValidation, IsValidation},
		{ValidationField("f", "x"), CodeValidation, IsValidation},
		{Permission("x"), CodePermission, IsPermission},
		{Conflict("f", "x"), CodeConflict, IsConflict},
		{NotFound(nil, "x"), CodeNotFound, IsNotFound},
		{Integrity("x"), CodeIntegrity, IsIntegrity},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, CodeOf(tc.err))
		assert.True(t, tc.is(tc.err))
	}
}
