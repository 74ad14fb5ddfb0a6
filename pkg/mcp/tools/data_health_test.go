package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
)

func newDataHealthServer(health *stubHealthService) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterDataHealthTools(s, &DataHealthToolDeps{Health: health})
	return s
}

func TestAssessDataHealth_ReturnsHeadline(t *testing.T) {
	health := &stubHealthService{report: sampleReport()}
	s := newDataHealthServer(health)

	resp := callTool(t, s, "assess_data_health", map[string]any{"schema_type": "  srs "})
	assert.False(t, resp.Result.IsError)

	var result assessmentResult
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &result))
	assert.Equal(t, []string{"srs"}, health.stdCalls)
	assert.Empty(t, health.llmCalls)
	assert.Equal(t, 42.0, result.OverallScore)
	assert.Equal(t, "Bad", result.HealthGrade)
	assert.Equal(t, int64(40), result.TotalRecords)
	require.Contains(t, result.Columns, "event_id")
	assert.True(t, result.Columns["event_id"].Critical)
	assert.Equal(t, []string{"completeness"}, result.Columns["event_id"].Checked)
	assert.Len(t, result.TopIssues, 1)
	assert.Nil(t, result.Report)
}

func TestAssessDataHealth_IncludeReport(t *testing.T) {
	s := newDataHealthServer(&stubHealthService{report: sampleReport()})

	resp := callTool(t, s, "assess_data_health", map[string]any{"schema_type": "srs", "include_report": true})

	var result assessmentResult
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &result))
	require.NotNil(t, result.Report)
	assert.Contains(t, result.Report.ColumnAnalysis, "event_id")
}

func TestAssessDataHealthLLM_UsesLLMPath(t *testing.T) {
	health := &stubHealthService{report: sampleReport()}
	s := newDataHealthServer(health)

	resp := callTool(t, s, "assess_data_health_llm", map[string]any{"schema_type": "ni_tct"})
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, []string{"ni_tct"}, health.llmCalls)
	assert.Empty(t, health.stdCalls)
}

func TestAssessDataHealth_ActionableErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unknown schema", fmt.Errorf("%w: %q", apperrors.ErrUnknownSchemaType, "bogus"), "invalid_parameters"},
		{"missing table", fmt.Errorf("srs: %w", apperrors.ErrTableNotFound), "table_not_found"},
		{"missing semantics", apperrors.ErrSemanticsNotFound, "semantics_not_found"},
		{"sqlstate in message", errors.New(`relation "unsafe_events_srs" does not exist (SQLSTATE 42P01)`), "undefined_table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newDataHealthServer(&stubHealthService{err: tt.err})

			resp := callTool(t, s, "assess_data_health", map[string]any{"schema_type": "srs"})
			assert.True(t, resp.Result.IsError)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestAssessDataHealth_SystemErrorIsProtocolError(t *testing.T) {
	s := newDataHealthServer(&stubHealthService{err: errors.New("connection reset")})

	resp := callTool(t, s, "assess_data_health", map[string]any{"schema_type": "srs"})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "connection reset")
}

func TestAssessDataHealth_EmptySchemaType(t *testing.T) {
	health := &stubHealthService{report: sampleReport()}
	s := newDataHealthServer(health)

	resp := callTool(t, s, "assess_data_health", map[string]any{"schema_type": "   "})
	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.text(t), "invalid_parameters")
	assert.Empty(t, health.stdCalls)
}

func TestListHealthSchemas(t *testing.T) {
	s := newDataHealthServer(&stubHealthService{})

	resp := callTool(t, s, "list_health_schemas", nil)

	var status struct {
		AvailableSchemas []string       `json:"available_schemas"`
		DimensionWeights map[string]int `json:"dimension_weights"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &status))
	assert.Equal(t, []string{"ei_tech", "srs", "ni_tct", "ni_tct_augmented"}, status.AvailableSchemas)
	assert.Equal(t, 25, status.DimensionWeights["completeness"])
}
