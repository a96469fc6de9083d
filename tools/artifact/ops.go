package artifact

import (
	"github.com/effective-security/x/values"
)

// environment is the sizing of a deployment environment.
type environment struct {
	Name          string
	Replicas      int
	MinNodes      int
	MaxNodes      int
	MachineType   string
	BackupDays    int
	Approval      bool
	HighAvailable bool
}

var environments = map[string]environment{
	"development": {Name: "development", Replicas: 1, MinNodes: 1, MaxNodes: 3, MachineType: "e2-standard-2", BackupDays: 7},
	"staging":     {Name: "staging", Replicas: 2, MinNodes: 2, MaxNodes: 5, MachineType: "e2-standard-4", BackupDays: 14},
	"production":  {Name: "production", Replicas: 3, MinNodes: 3, MaxNodes: 10, MachineType: "n2-standard-8", BackupDays: 30, Approval: true, HighAvailable: true},
}

func envArgs(spec map[string]any, selector, env string) *args {
	env = values.StringsCoalesce(env, "development")
	return &args{
		selector: selector,
		meta:     []meta{{key: "environment", value: env}},
		data: map[string]any{
			"Spec": spec,
			"Env":  environments[env],
		},
	}
}

// InfrastructureManagerInput is the input of the infrastructure_manager tool.
type InfrastructureManagerInput struct {
	InfraConfig   map[string]any `json:"infra_config" yaml:"infra_config" validate:"required" jsonschema:"title=Infrastructure Configuration,description=Infrastructure configuration including cloud provider and resources and requirements."`
	OperationType string         `json:"operation_type" yaml:"operation_type" jsonschema:"title=Operation Type,description=Type of infrastructure operation.,enum=provision,enum=deploy,enum=monitor,enum=maintain"`
	Environment   string         `json:"environment,omitempty" yaml:"environment,omitempty" validate:"omitempty,oneof=development staging production" jsonschema:"title=Environment,description=Target environment.,default=development,enum=development,enum=staging,enum=production"`
}

// NewInfrastructureManager returns the tool to provision, deploy, monitor and maintain infrastructure.
func NewInfrastructureManager() (*Tool[InfrastructureManagerInput], error) {
	return newTool(definition[InfrastructureManagerInput]{
		name:        InfrastructureManagerName,
		description: "Plans infrastructure operations for an environment: provisioning, deployment, monitoring or maintenance.",
		label:       "operation",
		selectorKey: "operation_type",
		selectors:   []string{"provision", "deploy", "monitor", "maintain"},
		args: func(req *InfrastructureManagerInput) *args {
			return envArgs(req.InfraConfig, req.OperationType, req.Environment)
		},
	})
}

// PipelineAutomatorInput is the input of the pipeline_automator tool.
type PipelineAutomatorInput struct {
	PipelineConfig map[string]any `json:"pipeline_config" yaml:"pipeline_config" validate:"required" jsonschema:"title=Pipeline Configuration,description=Pipeline configuration including repository and stages and requirements."`
	PipelineType   string         `json:"pipeline_type" yaml:"pipeline_type" jsonschema:"title=Pipeline Type,description=Type of CI/CD pipeline.,enum=build,enum=test,enum=deploy,enum=release"`
	Environment    string         `json:"environment,omitempty" yaml:"environment,omitempty" validate:"omitempty,oneof=development staging production" jsonschema:"title=Environment,description=Target environment.,default=development,enum=development,enum=staging,enum=production"`
}

// NewPipelineAutomator returns the tool to design CI/CD pipelines.
func NewPipelineAutomator() (*Tool[PipelineAutomatorInput], error) {
	return newTool(definition[PipelineAutomatorInput]{
		name:        PipelineAutomatorName,
		description: "Designs CI/CD pipelines for an environment: build, test, deploy or release.",
		label:       "pipeline",
		selectorKey: "pipeline_type",
		selectors:   []string{"build", "test", "deploy", "release"},
		args: func(req *PipelineAutomatorInput) *args {
			return envArgs(req.PipelineConfig, req.PipelineType, req.Environment)
		},
	})
}

// DataArchitectInput is the input of the data_architect tool.
type DataArchitectInput struct {
	ArchitectureConfig map[string]any `json:"architecture_config" yaml:"architecture_config" validate:"required" jsonschema:"title=Architecture Configuration,description=Architecture configuration including data sources and models and requirements."`
	DesignType         string         `json:"design_type" yaml:"design_type" jsonschema:"title=Design Type,description=Type of data architecture design.,enum=infrastructure,enum=model,enum=pipeline,enum=integration"`
	Environment        string         `json:"environment,omitempty" yaml:"environment,omitempty" validate:"omitempty,oneof=development staging production" jsonschema:"title=Environment,description=Target environment.,default=development,enum=development,enum=staging,enum=production"`
}

// NewDataArchitect returns the tool to design data platforms.
func NewDataArchitect() (*Tool[DataArchitectInput], error) {
	return newTool(definition[DataArchitectInput]{
		name:        DataArchitectName,
		description: "Designs the data architecture for an environment: infrastructure, data models, pipelines or integrations.",
		label:       "design",
		selectorKey: "design_type",
		selectors:   []string{"infrastructure", "model", "pipeline", "integration"},
		args: func(req *DataArchitectInput) *args {
			return envArgs(req.ArchitectureConfig, req.DesignType, req.Environment)
		},
	})
}

// DataPipelineManagerInput is the input of the data_pipeline_manager tool.
type DataPipelineManagerInput struct {
	PipelineConfig map[string]any `json:"pipeline_config" yaml:"pipeline_config" validate:"required" jsonschema:"title=Pipeline Configuration,description=Pipeline configuration including source and destination and transformations."`
	PipelineType   string         `json:"pipeline_type" yaml:"pipeline_type" jsonschema:"title=Pipeline Type,description=Type of data pipeline.,enum=etl,enum=elt,enum=streaming,enum=batch"`
	Environment    string         `json:"environment,omitempty" yaml:"environment,omitempty" validate:"omitempty,oneof=development staging production" jsonschema:"title=Environment,description=Target environment.,default=development,enum=development,enum=staging,enum=production"`
}

// NewDataPipelineManager returns the tool to configure data pipelines.
func NewDataPipelineManager() (*Tool[DataPipelineManagerInput], error) {
	return newTool(definition[DataPipelineManagerInput]{
		name:        DataPipelineManagerName,
		description: "Configures data pipelines for an environment: ETL, ELT, streaming or batch.",
		label:       "pipeline",
		selectorKey: "pipeline_type",
		selectors:   []string{"etl", "elt", "streaming", "batch"},
		args: func(req *DataPipelineManagerInput) *args {
			return envArgs(req.PipelineConfig, req.PipelineType, req.Environment)
		},
	})
}
