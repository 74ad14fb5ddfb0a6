package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownSchemaType = errors.New("unknown schema type")
	ErrSemanticsNotFound = errors.New("semantic config not found for schema type")
	ErrTableNotFound     = errors.New("table not found or has no assessable columns")
	ErrLLMNotConfigured  = errors.New("llm not configured")
)
