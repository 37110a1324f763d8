package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with IndexError
	ie := New(ErrCodeFileNotFound, "file not found: a.jar", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ie)
	assert.Equal(t, originalErr, errors.Unwrap(ie))
	assert.True(t, errors.Is(ie, originalErr))
}

func TestIndexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *IndexError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeConfigNotFound, "config file not found", nil),
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "wrapped cause keeps single message",
			err:      Wrap(ErrCodeInternal, errors.New("boom")),
			expected: "[ERR_501_INTERNAL] boom",
		},
		{
			name:     "distinct cause is appended",
			err:      ScanError("central", errors.New("disk gone")),
			expected: "[ERR_506_SCAN_FAILED] error scanning context central: disk gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSentinels_MatchByCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"repository not found", RepositoryNotFoundError("/repo"), ErrRepositoryNotFound},
		{"incompatible", IncompatibleIndexError("/idx", nil), ErrIncompatibleIndex},
		{"staging", StagingError("/tmp/x", nil), ErrStaging},
		{"scan", ScanError("c", nil), ErrScan},
		{"invalid query", InvalidQueryError("bad", nil), ErrInvalidQuery},
		{"digest", DigestUnavailableError("SHA-1"), ErrDigestUnavailable},
		{"duplicate", DuplicateIDError("c"), ErrDuplicateID},
		{"unsupported", UnsupportedError("commit", "merged context"), ErrUnsupported},
		{"context not found", ContextNotFoundError("c"), ErrContextNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, fmt.Errorf("outer: %w", tt.err), tt.sentinel)
		})
	}
}

func TestScanError_WrapsCauseChain(t *testing.T) {
	// Given: a staging failure wrapped into a scan error
	root := errors.New("permission denied")
	err := ScanError("central", StagingError("/tmp/central-tmp", root))

	// Then: every layer is reachable
	assert.ErrorIs(t, err, ErrScan)
	assert.ErrorIs(t, err, ErrStaging)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "central", err.Details["context_id"])
	assert.NotErrorIs(t, err, ErrRepositoryNotFound)
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeDigestUnavailable, CategoryConfig, SeverityFatal},
		{ErrCodeRepositoryNotFound, CategoryIO, SeverityError},
		{ErrCodeStagingFailed, CategoryIO, SeverityWarning},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError},
		{ErrCodeScanFailed, CategoryInternal, SeverityError},
		{"BAD", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "x", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestHelpers_OnPlainErrors(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsFatal_DigestUnavailable(t *testing.T) {
	err := fmt.Errorf("identify: %w", DigestUnavailableError("SHA-1"))

	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrCodeDigestUnavailable, GetCode(err))
	assert.Equal(t, CategoryConfig, GetCategory(err))
}

func TestFormatForCLI(t *testing.T) {
	out := FormatForCLI(RepositoryNotFoundError("/srv/repo"))

	assert.Contains(t, out, "Error: repository not found: /srv/repo")
	assert.Contains(t, out, "Hint:")
	assert.Contains(t, out, "Code: ERR_206_REPOSITORY_NOT_FOUND")
	assert.Empty(t, FormatForCLI(nil))
	assert.Contains(t, FormatForCLI(errors.New("x")), ErrCodeInternal)
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(ScanError("central", errors.New("boom")))
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"code":"ERR_506_SCAN_FAILED"`)
	assert.Contains(t, s, `"context_id":"central"`)
	assert.Contains(t, s, `"cause":"boom"`)
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(ScanError("central", errors.New("boom")))
	require.NotEmpty(t, attrs)
	assert.Len(t, attrs, 5)

	assert.Nil(t, LogAttrs(nil))
	assert.Len(t, LogAttrs(errors.New("plain")), 1)
}
