package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	input := `{"priority": "high", "dimensions_to_check": ["completeness"]}`
	got, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	input := "Here you go:\n```json\n{\"priority\": \"low\"}\n```\nThanks"
	got, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.Equal(t, `{"priority": "low"}`, got)
}

func TestExtractJSON_ThinkTags(t *testing.T) {
	input := "<think>\nthe column is an identifier {maybe}\n</think>\n{\"a\": {\"b\": [1, 2]}}"
	got, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": [1, 2]}}`, got)
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	input := `{"reasoning": {"validity": "format like {YYYY}-MM \"quoted\""}}`
	got, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}

func TestExtractJSON_SkipsInvalidLeadingBraces(t *testing.T) {
	input := `set {x} then {"ok": true}`
	got, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, got)
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that")
	assert.Error(t, err)

	_, err = ExtractJSON(`{"truncated": "resp`)
	assert.Error(t, err)
}

func TestParseJSONResponse(t *testing.T) {
	type answer struct {
		Priority string   `json:"priority"`
		Check    []string `json:"dimensions_to_check"`
	}

	got, err := ParseJSONResponse[answer]("```json\n{\"priority\":\"critical\",\"dimensions_to_check\":[\"validity\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "critical", got.Priority)
	assert.Equal(t, []string{"validity"}, got.Check)

	_, err = ParseJSONResponse[answer](`{"priority": 7}`)
	assert.Error(t, err)
}
