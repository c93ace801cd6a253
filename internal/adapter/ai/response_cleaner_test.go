package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponseCleaner(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()
	assert.NotNil(t, cleaner)
}

func TestResponseCleaner_CleanJSONResponse(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean_json",
			input:    `{"status": "success"}`,
			expected: `{"status": "success"}`,
		},
		{
			name:     "markdown_wrapped_json",
			input:    "```json\n{\"status\": \"success\"}\n```",
			expected: `{"status": "success"}`,
		},
		{
			name:     "mixed_content_with_json",
			input:    "Here is the response: {\"status\": \"success\", \"data\": \"test\"}",
			expected: `{"status": "success", "data": "test"}`,
		},
		{
			name:     "json_with_suffix",
			input:    `{"status": "success"} - end of response`,
			expected: `{"status": "success"}`,
		},
		{
			name:     "nested_json",
			input:    "Result: {\"data\": {\"status\": \"success\"}}",
			expected: `{"data": {"status": "success"}}`,
		},
		{
			name:     "plain_text_left_alone",
			input:    "This is just text",
			expected: "This is just text",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := cleaner.CleanJSONResponse(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResponseCleaner_removeMarkdownBlocks(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json_markdown_block",
			input:    "```json\n{\"status\": \"success\"}\n```",
			expected: `{"status": "success"}`,
		},
		{
			name:     "generic_markdown_block",
			input:    "```\n{\"status\": \"success\"}\n```",
			expected: `{"status": "success"}`,
		},
		{
			name:     "no_markdown",
			input:    `{"status": "success"}`,
			expected: `{"status": "success"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := cleaner.removeMarkdownBlocks(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResponseCleaner_extractJSON(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "pure_json",
			input:    `{"status": "success"}`,
			expected: `{"status": "success"}`,
		},
		{
			name:     "json_with_prefix",
			input:    "Here is the result: {\"status\": \"success\"}",
			expected: `{"status": "success"}`,
		},
		{
			name:     "json_with_suffix",
			input:    `{"status": "success"} - end of response`,
			expected: `{"status": "success"}`,
		},
		{
			name:     "nested_json",
			input:    "Result: {\"data\": {\"status\": \"success\"}}",
			expected: `{"data": {"status": "success"}}`,
		},
		{
			name:     "no_json",
			input:    "This is just text",
			expected: "This is just text",
		},
		{
			name:     "multiple_objects",
			input:    "First: {\"a\": 1} Second: {\"b\": 2}",
			expected: `{"a": 1}`,
		},
		{
			name:     "unbalanced_braces",
			input:    `{"key": "value"`,
			expected: `{"key": "value"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := cleaner.extractJSON(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResponseCleaner_IsValidJSON(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "valid_json",
			input:    `{"status": "success"}`,
			expected: true,
		},
		{
			name:     "invalid_json",
			input:    `{status: success}`,
			expected: false,
		},
		{
			name:     "empty_string",
			input:    "",
			expected: false,
		},
		{
			name:     "valid_array",
			input:    `[{"id": 1}, {"id": 2}]`,
			expected: true,
		},
		{
			name:     "trailing_comma",
			input:    `{"status": "success",}`,
			expected: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := cleaner.IsValidJSON(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResponseCleaner_CleanAndValidateJSON(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	tests := []struct {
		name          string
		input         string
		expected      string
		expectedError bool
	}{
		{
			name:          "valid_cleanable_json",
			input:         "```json\n{\"status\": \"success\"}\n```",
			expected:      `{"status": "success"}`,
			expectedError: false,
		},
		{
			name:          "invalid_json_after_cleaning",
			input:         "This is not JSON at all",
			expected:      "",
			expectedError: true,
		},
		{
			name:          "single_quotes_not_rewritten",
			input:         `{'status': 'success'}`,
			expected:      "",
			expectedError: true,
		},
		{
			name:          "prose_then_object",
			input:         "Sure, here you go:\n{\"conversation\": []}",
			expected:      `{"conversation": []}`,
			expectedError: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := cleaner.CleanAndValidateJSON(tt.input)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Empty(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestResponseCleaner_CleanAndValidateJSON_ErrorCarriesBothForms(t *testing.T) {
	t.Parallel()

	cleaner := NewResponseCleaner()

	input := "```json\nnot an object at all\n```"

	_, err := cleaner.CleanAndValidateJSON(input)
	require.Error(t, err)

	var jsonErr *JSONValidationError
	require.True(t, errors.As(err, &jsonErr))
	assert.Equal(t, input, jsonErr.Original)
	assert.Equal(t, "not an object at all", jsonErr.Cleaned)
	assert.NotEmpty(t, jsonErr.Error())
}
