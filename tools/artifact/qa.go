package artifact

import (
	"github.com/effective-security/x/values"
)

// QualityAnalyzerInput is the input of the quality_analyzer tool.
type QualityAnalyzerInput struct {
	AnalysisConfig map[string]any `json:"analysis_config" yaml:"analysis_config" validate:"required" jsonschema:"title=Analysis Configuration,description=Analysis configuration including metrics and thresholds and requirements."`
	AnalysisType   string         `json:"analysis_type" yaml:"analysis_type" jsonschema:"title=Analysis Type,description=Type of quality analysis.,enum=coverage,enum=performance,enum=security,enum=accessibility"`
	ReportFormat   string         `json:"report_format,omitempty" yaml:"report_format,omitempty" validate:"omitempty,oneof=json html markdown" jsonschema:"title=Report Format,description=Format of the analysis report.,default=json,enum=json,enum=html,enum=markdown"`
}

var reportFiles = map[string]string{
	"json":     "report.json",
	"html":     "report.html",
	"markdown": "REPORT.md",
}

// NewQualityAnalyzer returns the tool to analyze coverage, performance, security and accessibility.
func NewQualityAnalyzer() (*Tool[QualityAnalyzerInput], error) {
	return newTool(definition[QualityAnalyzerInput]{
		name:        QualityAnalyzerName,
		description: "Analyzes the quality of the product: test coverage, performance, security or accessibility, with recommendations.",
		label:       "analysis",
		selectorKey: "analysis_type",
		selectors:   []string{"coverage", "performance", "security", "accessibility"},
		args: func(req *QualityAnalyzerInput) *args {
			format := values.StringsCoalesce(req.ReportFormat, "json")
			return &args{
				selector: req.AnalysisType,
				meta:     []meta{{key: "report_format", value: format}},
				data: map[string]any{
					"Spec":       req.AnalysisConfig,
					"Format":     format,
					"ReportFile": reportFiles[format],
				},
			}
		},
	})
}

// TestAutomatorInput is the input of the test_automator tool.
type TestAutomatorInput struct {
	TestConfig map[string]any `json:"test_config" yaml:"test_config" validate:"required" jsonschema:"title=Test Configuration,description=Test configuration including scope and components and requirements."`
	TestType   string         `json:"test_type" yaml:"test_type" jsonschema:"title=Test Type,description=Type of tests to generate.,enum=unit,enum=integration,enum=e2e,enum=performance"`
	Framework  string         `json:"framework,omitempty" yaml:"framework,omitempty" jsonschema:"title=Framework,description=Test framework to use such as pytest or jest or cypress or k6. The default depends on the test type."`
}

// default framework by test type
var testFrameworks = map[string]string{
	"unit":        "pytest",
	"integration": "pytest",
	"e2e":         "cypress",
	"performance": "k6",
}

// NewTestAutomator returns the tool to generate test suites.
func NewTestAutomator() (*Tool[TestAutomatorInput], error) {
	return newTool(definition[TestAutomatorInput]{
		name:        TestAutomatorName,
		description: "Generates automated test suites: unit, integration, end to end or performance tests.",
		label:       "test",
		selectorKey: "test_type",
		selectors:   []string{"unit", "integration", "e2e", "performance"},
		args: func(req *TestAutomatorInput) *args {
			framework := values.StringsCoalesce(req.Framework, testFrameworks[req.TestType])
			return &args{
				selector: req.TestType,
				meta:     []meta{{key: "framework", value: framework}},
				data: map[string]any{
					"Spec":      req.TestConfig,
					"Framework": framework,
				},
			}
		},
	})
}
