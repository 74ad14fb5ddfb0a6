package tools

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results. Returning
// it as a tool result keeps actionable errors visible to the client instead
// of surfacing as a protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad parameters, missing
// table). System failures should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42P01)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// sqlStateCode returns the SQLSTATE of a datasource error, or "".
func sqlStateCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if m := sqlStateRegex.FindStringSubmatch(err.Error()); len(m) >= 2 {
		return m[1]
	}
	return ""
}

// toolErrorFor converts an assessment error into a tool result when the
// caller can act on it. A nil result means the error is a system failure.
func toolErrorFor(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrUnknownSchemaType):
		return NewErrorResult("invalid_parameters", err.Error())
	case errors.Is(err, apperrors.ErrTableNotFound):
		return NewErrorResult("table_not_found", err.Error())
	case errors.Is(err, apperrors.ErrSemanticsNotFound):
		return NewErrorResult("semantics_not_found", err.Error())
	}

	switch state := sqlStateCode(err); {
	case state == "42P01":
		return NewErrorResult("undefined_table", err.Error())
	case state == "42703":
		return NewErrorResult("undefined_column", err.Error())
	case len(state) == 5 && state[:2] == "42":
		return NewErrorResultWithDetails("datasource_access_error", err.Error(), map[string]string{"sqlstate": state})
	}
	return nil
}
