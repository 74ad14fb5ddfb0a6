package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// stubHealthService returns canned reports per schema type.
type stubHealthService struct {
	report   *models.HealthReport
	err      error
	llmCalls []string
	stdCalls []string
}

func (s *stubHealthService) Assess(_ context.Context, schemaType string) (*models.HealthReport, error) {
	s.stdCalls = append(s.stdCalls, schemaType)
	return s.report, s.err
}

func (s *stubHealthService) AssessLLM(_ context.Context, schemaType string) (*models.HealthReport, error) {
	s.llmCalls = append(s.llmCalls, schemaType)
	return s.report, s.err
}

func (s *stubHealthService) Status() *services.HealthStatus {
	return &services.HealthStatus{
		AvailableSchemas:     models.SchemaTypes,
		AssessmentDimensions: models.AllDimensions,
		DimensionWeights:     models.DimensionWeights(),
		APIVersion:           services.APIVersion,
	}
}

func sampleReport() *models.HealthReport {
	return &models.HealthReport{
		SchemaType:     models.SchemaSRS,
		AssessmentType: models.AssessmentStandard,
		TotalRecords:   40,
		OverallHealth: models.OverallHealth{
			Score: 42,
			Grade: "Bad",
			Dimensions: map[models.Dimension]models.DimensionAggregate{
				models.DimensionCompleteness: {Score: 42, Weight: 25, ColumnsAssessed: 1},
			},
		},
		ColumnAnalysis: map[string]*models.ColumnHealth{
			"event_id": {
				OverallColumnScore: 42,
				IsCritical:         true,
				Issues:             []string{"58.0% missing values"},
				Completeness:       &models.CompletenessResult{Score: 42},
				DimensionsChecked:  []models.Dimension{models.DimensionCompleteness},
			},
		},
		Summary: models.Summary{
			TopIssues: []models.Issue{
				{Severity: models.SeverityHigh, Column: "event_id", Issue: "58.0% missing values"},
			},
		},
	}
}

// toolCallResponse is the subset of a tools/call JSON-RPC response the tests read.
type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolCallResponse {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  params,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var resp toolCallResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func (r toolCallResponse) text(t *testing.T) string {
	t.Helper()
	require.Nil(t, r.Error, "expected a tool result, got a JSON-RPC error")
	require.NotEmpty(t, r.Result.Content)
	return r.Result.Content[0].Text
}
