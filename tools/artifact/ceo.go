package artifact

import (
	"math"
	"strings"

	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

// Tool names
const (
	ProjectAnalyzerName       = "project_analyzer"
	TeamCoordinatorName       = "team_coordinator"
	ArchitectureDesignerName  = "architecture_designer"
	TechEvaluatorName         = "tech_evaluator"
	ModelArchitectName        = "model_architect"
	ModelTrainerName          = "model_trainer"
	BackendDeveloperName      = "backend_developer"
	FrontendDeveloperName     = "frontend_developer"
	CrossPlatformName         = "cross_platform_developer"
	NativeDeveloperName       = "native_developer"
	ExperienceDesignerName    = "experience_designer"
	InterfaceDesignerName     = "interface_designer"
	QualityAnalyzerName       = "quality_analyzer"
	TestAutomatorName         = "test_automator"
	InfrastructureManagerName = "infrastructure_manager"
	PipelineAutomatorName     = "pipeline_automator"
	DataArchitectName         = "data_architect"
	DataPipelineManagerName   = "data_pipeline_manager"
)

// ProjectAnalyzerInput is the input of the project_analyzer tool.
type ProjectAnalyzerInput struct {
	ProjectRequirements map[string]any `json:"project_requirements" yaml:"project_requirements" validate:"required" jsonschema:"title=Project Requirements,description=Project requirements including scope and timeline and budget."`
	AnalysisType        string         `json:"analysis_type" yaml:"analysis_type" jsonschema:"title=Analysis Type,description=Type of analysis to perform.,enum=feasibility,enum=resource_planning,enum=risk_assessment"`
}

// feasibility scores of the assessments
const (
	technicalScore = 0.75
	timelineScore  = 0.8
	budgetScore    = 0.85
)

// NewProjectAnalyzer returns the tool to assess feasibility, resources and risks of a project.
func NewProjectAnalyzer() (*Tool[ProjectAnalyzerInput], error) {
	return newTool(definition[ProjectAnalyzerInput]{
		name:        ProjectAnalyzerName,
		description: "Analyzes project requirements and produces a feasibility study, a resource plan or a risk assessment.",
		label:       "analysis",
		selectorKey: "analysis_type",
		selectors:   []string{"feasibility", "resource_planning", "risk_assessment"},
		args: func(req *ProjectAnalyzerInput) *args {
			score := (technicalScore + timelineScore + budgetScore) / 3
			return &args{
				selector: req.AnalysisType,
				data: map[string]any{
					"Spec":           req.ProjectRequirements,
					"TechnicalScore": technicalScore,
					"TimelineScore":  timelineScore,
					"BudgetScore":    budgetScore,
					"Score":          math.Round(score*100) / 100,
				},
			}
		},
	})
}

// TeamCoordinatorInput is the input of the team_coordinator tool.
type TeamCoordinatorInput struct {
	ActionParameters map[string]any `json:"action_parameters" yaml:"action_parameters" validate:"required" jsonschema:"title=Action Parameters,description=Parameters of the action such as task_details or assignee or project_id or team_member."`
	ActionType       string         `json:"action_type" yaml:"action_type" jsonschema:"title=Action Type,description=Type of coordination action.,enum=assign_task,enum=track_progress,enum=resource_allocation,enum=performance_review"`
	PriorityLevel    string         `json:"priority_level,omitempty" yaml:"priority_level,omitempty" validate:"omitempty,oneof=high medium low" jsonschema:"title=Priority Level,description=Priority of the action.,default=medium,enum=high,enum=medium,enum=low"`
}

// NewTeamCoordinator returns the tool to assign tasks and track the team.
func NewTeamCoordinator() (*Tool[TeamCoordinatorInput], error) {
	return newTool(definition[TeamCoordinatorInput]{
		name:        TeamCoordinatorName,
		description: "Coordinates the team: assigns tasks, tracks progress, allocates resources and reviews performance.",
		label:       "action",
		selectorKey: "action_type",
		selectors:   []string{"assign_task", "track_progress", "resource_allocation", "performance_review"},
		args: func(req *TeamCoordinatorInput) *args {
			priority := values.StringsCoalesce(req.PriorityLevel, "medium")
			return &args{
				selector: req.ActionType,
				meta:     []meta{{key: "priority_level", value: priority}},
				data: map[string]any{
					"Spec":     req.ActionParameters,
					"Priority": priority,
					"TaskID":   newTaskID(),
				},
			}
		},
	})
}

func newTaskID() string {
	return "TASK-" + strings.ToUpper(uuid.NewString()[:8])
}
