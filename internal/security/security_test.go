package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/durableflow/internal/core"
)

func TestValidateFunctionName(t *testing.T) {
	require.NoError(t, ValidateFunctionName("fetch"))
	require.NoError(t, ValidateFunctionName("fetch.user-data_v2"))

	require.ErrorIs(t, ValidateFunctionName(""), core.ErrInvalidFunctionName)
	require.ErrorIs(t, ValidateFunctionName("2fast"), core.ErrInvalidFunctionName)
	require.ErrorIs(t, ValidateFunctionName("has spaces"), core.ErrInvalidFunctionName)
	require.ErrorIs(t, ValidateFunctionName(strings.Repeat("a", MaxFunctionNameLength+1)), core.ErrFunctionNameTooLong)
}

func TestValidateArgsSize(t *testing.T) {
	require.NoError(t, ValidateArgsSize(make([]byte, MaxArgsSize)))
	require.ErrorIs(t, ValidateArgsSize(make([]byte, MaxArgsSize+1)), core.ErrArgsTooLarge)
}

func TestValidateCodeSize(t *testing.T) {
	require.NoError(t, ValidateCodeSize(make([]byte, MaxCodeSize)))
	require.ErrorIs(t, ValidateCodeSize(make([]byte, MaxCodeSize+1)), core.ErrCodeTooLarge)
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
	assert.Equal(t, "line one\nline two", SanitizeErrorMessage("line one\nline two"))
	assert.Equal(t, "bad", SanitizeErrorMessage("b\x00a\x7fd"))

	long := strings.Repeat("x", MaxErrorMessageLength+50)
	got := SanitizeErrorMessage(long)
	assert.Len(t, []rune(got), MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 1, ClampConcurrency(0))
	assert.Equal(t, 1, ClampConcurrency(-5))
	assert.Equal(t, 10, ClampConcurrency(10))
	assert.Equal(t, MaxConcurrency, ClampConcurrency(MaxConcurrency+1))
}
