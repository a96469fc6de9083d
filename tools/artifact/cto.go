package artifact

import (
	"github.com/effective-security/x/values"
)

// ArchitectureDesignerInput is the input of the architecture_designer tool.
type ArchitectureDesignerInput struct {
	ProjectRequirements map[string]any `json:"project_requirements" yaml:"project_requirements" validate:"required" jsonschema:"title=Project Requirements,description=Project requirements and technical specifications."`
	DesignType          string         `json:"design_type" yaml:"design_type" jsonschema:"title=Design Type,description=Type of architecture design.,enum=system,enum=ai_integration,enum=security,enum=infrastructure"`
	ScalabilityLevel    string         `json:"scalability_level,omitempty" yaml:"scalability_level,omitempty" validate:"omitempty,oneof=high medium low" jsonschema:"title=Scalability Level,description=Required scalability level.,default=medium,enum=high,enum=medium,enum=low"`
}

// scaling is the sizing for a scalability level.
type scaling struct {
	MinReplicas int
	MaxReplicas int
	Regions     int
	CacheNodes  int
	ReadReplica int
}

var scalingLevels = map[string]scaling{
	"low":    {MinReplicas: 1, MaxReplicas: 3, Regions: 1, CacheNodes: 1, ReadReplica: 0},
	"medium": {MinReplicas: 2, MaxReplicas: 10, Regions: 1, CacheNodes: 3, ReadReplica: 1},
	"high":   {MinReplicas: 3, MaxReplicas: 50, Regions: 2, CacheNodes: 6, ReadReplica: 3},
}

// NewArchitectureDesigner returns the tool to design system, AI, security and infrastructure architecture.
func NewArchitectureDesigner() (*Tool[ArchitectureDesignerInput], error) {
	return newTool(definition[ArchitectureDesignerInput]{
		name:        ArchitectureDesignerName,
		description: "Designs the system architecture, the AI integration, the security architecture or the cloud infrastructure of a project.",
		label:       "design",
		selectorKey: "design_type",
		selectors:   []string{"system", "ai_integration", "security", "infrastructure"},
		args: func(req *ArchitectureDesignerInput) *args {
			level := values.StringsCoalesce(req.ScalabilityLevel, "medium")
			return &args{
				selector: req.DesignType,
				meta:     []meta{{key: "scalability_level", value: level}},
				data: map[string]any{
					"Spec":    req.ProjectRequirements,
					"Level":   level,
					"Scaling": scalingLevels[level],
				},
			}
		},
	})
}

// TechEvaluatorInput is the input of the tech_evaluator tool.
type TechEvaluatorInput struct {
	EvaluationContext  map[string]any `json:"evaluation_context" yaml:"evaluation_context" validate:"required" jsonschema:"title=Evaluation Context,description=Context of the evaluation including requirements and constraints."`
	EvaluationType     string         `json:"evaluation_type" yaml:"evaluation_type" jsonschema:"title=Evaluation Type,description=Type of technology to evaluate.,enum=framework,enum=database,enum=cloud_service,enum=ai_platform,enum=development_tool"`
	ComparisonCriteria []string       `json:"comparison_criteria,omitempty" yaml:"comparison_criteria,omitempty" jsonschema:"title=Comparison Criteria,description=Criteria to compare the options by."`
}

var defaultCriteria = []string{"performance", "scalability", "community_support", "learning_curve", "cost"}

// NewTechEvaluator returns the tool to compare technologies.
func NewTechEvaluator() (*Tool[TechEvaluatorInput], error) {
	return newTool(definition[TechEvaluatorInput]{
		name:        TechEvaluatorName,
		description: "Evaluates and compares frameworks, databases, cloud services, AI platforms or development tools and recommends one.",
		label:       "evaluation",
		selectorKey: "evaluation_type",
		selectors:   []string{"framework", "database", "cloud_service", "ai_platform", "development_tool"},
		args: func(req *TechEvaluatorInput) *args {
			criteria := req.ComparisonCriteria
			if len(criteria) == 0 {
				criteria = defaultCriteria
			}
			return &args{
				selector: req.EvaluationType,
				meta:     []meta{{key: "comparison_criteria", value: criteria}},
				data: map[string]any{
					"Spec":     req.EvaluationContext,
					"Criteria": criteria,
				},
			}
		},
	})
}
