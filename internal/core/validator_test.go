package core

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyview/internal/types"
)

// testLogger returns a logger that only prints errors.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testLookupRequest struct {
	City string `json:"city" validate:"required,city"`
}

type testLanguageRequest struct {
	Language string `json:"language" validate:"required,language"`
}

type testClientStruct struct {
	ClientID string `json:"client_id" validate:"omitempty,uuid"`
}

func TestValidationResult_IsValid(t *testing.T) {
	assert.True(t, ValidationResult{}.IsValid())
	assert.True(t, ValidationResult{Warnings: []string{"deprecated"}}.IsValid())
	assert.False(t, ValidationResult{Errors: []ValidationError{{Field: "city"}}}.IsValid())
}

func TestNewValidator(t *testing.T) {
	v := NewValidator(testLogger())
	require.NotNil(t, v)
	assert.NotNil(t, v.validate)
	assert.NotNil(t, v.logger)
}

func TestValidateStruct_City(t *testing.T) {
	v := NewValidator(testLogger())

	assert.NoError(t, v.ValidateStruct(testLookupRequest{City: "Paris"}))

	tests := map[string]string{
		"empty":      "",
		"whitespace": "   ",
	}
	for name, city := range tests {
		t.Run(name, func(t *testing.T) {
			err := v.ValidateStruct(testLookupRequest{City: city})

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %T", err)
			assert.Equal(t, 400, appErr.HTTPStatus())

			errs, ok := appErr.Details["validation_errors"].([]ValidationError)
			require.True(t, ok)
			require.Len(t, errs, 1)
			assert.Equal(t, "city", errs[0].Field, "json field names are reported")
		})
	}
}

func TestValidateStruct_Language(t *testing.T) {
	v := NewValidator(testLogger())

	for _, ok := range []string{"en", "tr", "TR", " en "} {
		assert.NoError(t, v.ValidateStruct(testLanguageRequest{Language: ok}), ok)
	}

	err := v.ValidateStruct(testLanguageRequest{Language: "de"})
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidLanguage, appErr.Code)
	assert.Equal(t, `unsupported language "de"`, appErr.Message)

	err = v.ValidateStruct(testLanguageRequest{})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "language is required", appErr.Message)
}

func TestValidateStructWithWarnings_ClientID(t *testing.T) {
	v := NewValidator(testLogger())

	assert.True(t, v.ValidateStructWithWarnings(testClientStruct{}).IsValid())
	assert.True(t, v.ValidateStructWithWarnings(testClientStruct{ClientID: "0b7e4c1e-4f2a-4a8e-9d55-3c3b1f1f9a10"}).IsValid())

	result := v.ValidateStructWithWarnings(testClientStruct{ClientID: "not-a-uuid"})
	require.False(t, result.IsValid())
	assert.Equal(t, string(types.ErrCodeValidationInvalidClientID), result.Errors[0].Code)
}

func TestValidateStruct_NonStructInput(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct("not a struct")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}

func TestTagToErrorCode(t *testing.T) {
	cases := []struct {
		tag      string
		expected types.ErrorCode
	}{
		{"language", types.ErrCodeValidationInvalidLanguage},
		{"city", types.ErrCodeValidationMissingCity},
		{"uuid", types.ErrCodeValidationInvalidClientID},
		{"required", types.ErrCodeValidationMissingField},
		{"max", types.ErrCodeValidationMissingField},
	}

	for _, tc := range cases {
		t.Run(tc.tag, func(t *testing.T) {
			assert.Equal(t, string(tc.expected), tagToErrorCode(tc.tag))
		})
	}
}
