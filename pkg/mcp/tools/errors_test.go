package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResultWithDetails("table_not_found", "no table", map[string]string{"table": "x"})
	require.True(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	assert.True(t, body.Error)
	assert.Equal(t, "table_not_found", body.Code)
	assert.Equal(t, "no table", body.Message)
	assert.NotNil(t, body.Details)
}

func TestSQLStateCode(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42501", Message: "permission denied"}
	assert.Equal(t, "42501", sqlStateCode(fmt.Errorf("count records: %w", pgErr)))
	assert.Equal(t, "42703", sqlStateCode(errors.New("column \"x\" does not exist (SQLSTATE 42703)")))
	assert.Empty(t, sqlStateCode(errors.New("timeout")))
}

func TestToolErrorFor(t *testing.T) {
	assert.Nil(t, toolErrorFor(errors.New("timeout")))

	result := toolErrorFor(fmt.Errorf("x: %w", &pgconn.PgError{Code: "42501"}))
	require.NotNil(t, result)
	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "datasource_access_error")
	assert.Contains(t, text, "42501")
}
