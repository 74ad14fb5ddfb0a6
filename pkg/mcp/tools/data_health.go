package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
	"github.com/ekaya-inc/ekaya-health/pkg/services"
)

// DataHealthToolDeps contains the dependencies of the data health tools.
type DataHealthToolDeps struct {
	Health services.DataHealthService
}

// columnHeadline is a compact per-column view for tool output.
type columnHeadline struct {
	Score    float64  `json:"score"`
	Critical bool     `json:"is_critical"`
	Issues   []string `json:"issues,omitempty"`
	Checked  []string `json:"dimensions_checked,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

// assessmentResult is what assessment tools return. The full report is
// included only when requested since it can be large.
type assessmentResult struct {
	SchemaType      models.SchemaType                              `json:"schema_type"`
	AssessmentType  string                                         `json:"assessment_type"`
	OverallScore    float64                                        `json:"overall_score"`
	HealthGrade     string                                         `json:"health_grade"`
	TotalRecords    int64                                          `json:"total_records"`
	Dimensions      map[models.Dimension]models.DimensionAggregate `json:"dimensions"`
	Columns         map[string]columnHeadline                      `json:"columns"`
	TopIssues       []models.Issue                                 `json:"top_issues"`
	Recommendations models.Recommendations                         `json:"recommendations"`
	LLMInsights     *models.LLMInsights                            `json:"llm_insights,omitempty"`
	Report          *models.HealthReport                           `json:"report,omitempty"`
}

func newAssessmentResult(report *models.HealthReport, includeReport bool) assessmentResult {
	columns := make(map[string]columnHeadline, len(report.ColumnAnalysis))
	for name, ch := range report.ColumnAnalysis {
		h := columnHeadline{
			Score:    ch.OverallColumnScore,
			Critical: ch.IsCritical,
			Issues:   ch.Issues,
			Priority: string(ch.Priority),
		}
		for _, d := range ch.DimensionsChecked {
			h.Checked = append(h.Checked, string(d))
		}
		columns[name] = h
	}

	result := assessmentResult{
		SchemaType:      report.SchemaType,
		AssessmentType:  report.AssessmentType,
		OverallScore:    report.OverallHealth.Score,
		HealthGrade:     report.OverallHealth.Grade,
		TotalRecords:    report.TotalRecords,
		Dimensions:      report.OverallHealth.Dimensions,
		Columns:         columns,
		TopIssues:       report.Summary.TopIssues,
		Recommendations: report.Summary.Recommendations,
		LLMInsights:     report.LLMInsights,
	}
	if includeReport {
		result.Report = report
	}
	return result
}

func schemaTypeNames() []string {
	names := make([]string, len(models.SchemaTypes))
	for i, st := range models.SchemaTypes {
		names[i] = string(st)
	}
	return names
}

// RegisterDataHealthTools adds the assessment tools to the MCP server.
func RegisterDataHealthTools(s *server.MCPServer, deps *DataHealthToolDeps) {
	registerAssessTool(s, deps, "assess_data_health",
		"Assess data quality of a safety event schema across completeness, uniqueness, consistency, validity and timeliness. "+
			"Deterministic rules decide which dimensions apply to each column.",
		deps.Health.Assess)

	registerAssessTool(s, deps, "assess_data_health_llm",
		"Assess data quality of a safety event schema with a language model choosing the relevant dimensions per column "+
			"from its semantic description. Falls back to checking all dimensions when the model is unavailable.",
		deps.Health.AssessLLM)

	registerListSchemasTool(s, deps)
}

func registerAssessTool(
	s *server.MCPServer,
	deps *DataHealthToolDeps,
	name, description string,
	assess func(ctx context.Context, schemaType string) (*models.HealthReport, error),
) {
	tool := mcp.NewTool(
		name,
		mcp.WithDescription(description),
		mcp.WithString(
			"schema_type",
			mcp.Required(),
			mcp.Description("Schema to assess"),
			mcp.Enum(schemaTypeNames()...),
		),
		mcp.WithBoolean(
			"include_report",
			mcp.Description("Include the full per-column report (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schemaType, err := req.RequireString("schema_type")
		if err != nil {
			return nil, err
		}
		schemaType = trimString(schemaType)
		if schemaType == "" {
			return NewErrorResult("invalid_parameters", "parameter 'schema_type' cannot be empty"), nil
		}

		report, err := assess(ctx, schemaType)
		if err != nil {
			if result := toolErrorFor(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("%s failed: %w", name, err)
		}

		jsonResult, err := json.Marshal(newAssessmentResult(report, getOptionalBoolWithDefault(req, "include_report", false)))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal assessment: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func registerListSchemasTool(s *server.MCPServer, deps *DataHealthToolDeps) {
	tool := mcp.NewTool(
		"list_health_schemas",
		mcp.WithDescription("Lists the assessable schema types, the quality dimensions and their weights"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonResult, err := json.Marshal(deps.Health.Status())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
