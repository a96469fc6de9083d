package artifact

import (
	"github.com/effective-security/x/values"
)

// BackendDeveloperInput is the input of the backend_developer tool.
type BackendDeveloperInput struct {
	APISpec         map[string]any `json:"api_spec" yaml:"api_spec" validate:"required" jsonschema:"title=API Specification,description=API specification including endpoints and data models and requirements."`
	DevelopmentType string         `json:"development_type" yaml:"development_type" jsonschema:"title=Development Type,description=Type of backend development.,enum=api,enum=database,enum=auth,enum=integration"`
	Framework       string         `json:"framework,omitempty" yaml:"framework,omitempty" validate:"omitempty,oneof=FastAPI Django Express" jsonschema:"title=Framework,description=Backend framework.,default=FastAPI,enum=FastAPI,enum=Django,enum=Express"`
}

// backendStack is the tooling of a backend framework.
type backendStack struct {
	Language   string
	ORM        string
	Validation string
	Docs       string
	Tests      string
	Auth       string
}

var backendStacks = map[string]backendStack{
	"FastAPI": {Language: "Python", ORM: "SQLAlchemy", Validation: "Pydantic", Docs: "OpenAPI", Tests: "pytest", Auth: "fastapi-users"},
	"Django":  {Language: "Python", ORM: "Django ORM", Validation: "Django REST Framework serializers", Docs: "drf-spectacular", Tests: "pytest-django", Auth: "django-allauth"},
	"Express": {Language: "TypeScript", ORM: "Prisma", Validation: "zod", Docs: "swagger-jsdoc", Tests: "jest", Auth: "passport"},
}

// NewBackendDeveloper returns the tool to plan backend development.
func NewBackendDeveloper() (*Tool[BackendDeveloperInput], error) {
	return newTool(definition[BackendDeveloperInput]{
		name:        BackendDeveloperName,
		description: "Produces the backend implementation plan for APIs, database, authentication or third party integration.",
		label:       "development",
		selectorKey: "development_type",
		selectors:   []string{"api", "database", "auth", "integration"},
		args: func(req *BackendDeveloperInput) *args {
			framework := values.StringsCoalesce(req.Framework, "FastAPI")
			return &args{
				selector: req.DevelopmentType,
				meta:     []meta{{key: "framework", value: framework}},
				data: map[string]any{
					"Spec":      req.APISpec,
					"Framework": framework,
					"Stack":     backendStacks[framework],
				},
			}
		},
	})
}

// FrontendDeveloperInput is the input of the frontend_developer tool.
type FrontendDeveloperInput struct {
	ComponentSpec   map[string]any `json:"component_spec" yaml:"component_spec" validate:"required" jsonschema:"title=Component Specification,description=Component specification including name and requirements and design."`
	DevelopmentType string         `json:"development_type" yaml:"development_type" jsonschema:"title=Development Type,description=Type of frontend development.,enum=component,enum=page,enum=state_management,enum=integration"`
	Framework       string         `json:"framework,omitempty" yaml:"framework,omitempty" validate:"omitempty,oneof=React Vue Angular" jsonschema:"title=Framework,description=Frontend framework.,default=React,enum=React,enum=Vue,enum=Angular"`
}

// frontendStack is the tooling of a frontend framework.
type frontendStack struct {
	Extension string
	State     string
	Router    string
	Styling   string
	Tests     string
	HTTP      string
}

var frontendStacks = map[string]frontendStack{
	"React":   {Extension: "tsx", State: "Redux Toolkit", Router: "React Router", Styling: "styled-components", Tests: "React Testing Library", HTTP: "React Query"},
	"Vue":     {Extension: "vue", State: "Pinia", Router: "Vue Router", Styling: "scoped CSS", Tests: "Vue Test Utils", HTTP: "axios"},
	"Angular": {Extension: "component.ts", State: "NgRx", Router: "Angular Router", Styling: "SCSS", Tests: "Jasmine", HTTP: "HttpClient"},
}

// NewFrontendDeveloper returns the tool to plan frontend development.
func NewFrontendDeveloper() (*Tool[FrontendDeveloperInput], error) {
	return newTool(definition[FrontendDeveloperInput]{
		name:        FrontendDeveloperName,
		description: "Produces the frontend implementation plan for a component, a page, state management or API integration.",
		label:       "development",
		selectorKey: "development_type",
		selectors:   []string{"component", "page", "state_management", "integration"},
		args: func(req *FrontendDeveloperInput) *args {
			framework := values.StringsCoalesce(req.Framework, "React")
			return &args{
				selector: req.DevelopmentType,
				meta:     []meta{{key: "framework", value: framework}},
				data: map[string]any{
					"Spec":      req.ComponentSpec,
					"Framework": framework,
					"Stack":     frontendStacks[framework],
				},
			}
		},
	})
}

// CrossPlatformDeveloperInput is the input of the cross_platform_developer tool.
type CrossPlatformDeveloperInput struct {
	AppSpec         map[string]any `json:"app_spec" yaml:"app_spec" validate:"required" jsonschema:"title=App Specification,description=Application specification including screens and features and requirements."`
	DevelopmentType string         `json:"development_type" yaml:"development_type" jsonschema:"title=Development Type,description=Type of cross platform development.,enum=ui,enum=feature,enum=state_management,enum=integration"`
	Framework       string         `json:"framework,omitempty" yaml:"framework,omitempty" validate:"omitempty,oneof=Flutter 'React Native'" jsonschema:"title=Framework,description=Cross platform framework.,default=Flutter,enum=Flutter,enum=React Native"`
}

// mobileStack is the tooling of a cross platform framework.
type mobileStack struct {
	Language   string
	Navigation string
	State      string
	Storage    string
	HTTP       string
	Tests      string
}

var mobileStacks = map[string]mobileStack{
	"Flutter":      {Language: "Dart", Navigation: "Navigator 2.0", State: "BLoC", Storage: "Hive", HTTP: "dio", Tests: "flutter_test"},
	"React Native": {Language: "TypeScript", Navigation: "React Navigation", State: "Redux", Storage: "AsyncStorage", HTTP: "axios", Tests: "Jest"},
}

// NewCrossPlatformDeveloper returns the tool to plan cross platform mobile development.
func NewCrossPlatformDeveloper() (*Tool[CrossPlatformDeveloperInput], error) {
	return newTool(definition[CrossPlatformDeveloperInput]{
		name:        CrossPlatformName,
		description: "Produces the cross platform mobile implementation plan for UI, a feature, state management or backend integration.",
		label:       "development",
		selectorKey: "development_type",
		selectors:   []string{"ui", "feature", "state_management", "integration"},
		args: func(req *CrossPlatformDeveloperInput) *args {
			framework := values.StringsCoalesce(req.Framework, "Flutter")
			return &args{
				selector: req.DevelopmentType,
				meta:     []meta{{key: "framework", value: framework}},
				data: map[string]any{
					"Spec":      req.AppSpec,
					"Framework": framework,
					"Stack":     mobileStacks[framework],
				},
			}
		},
	})
}

// NativeDeveloperInput is the input of the native_developer tool.
type NativeDeveloperInput struct {
	FeatureSpec     map[string]any `json:"feature_spec" yaml:"feature_spec" validate:"required" jsonschema:"title=Feature Specification,description=Feature specification including requirements and platform capabilities."`
	DevelopmentType string         `json:"development_type" yaml:"development_type" jsonschema:"title=Development Type,description=Type of native development.,enum=feature,enum=optimization,enum=integration,enum=platform_service"`
	Platform        string         `json:"platform,omitempty" yaml:"platform,omitempty" validate:"omitempty,oneof=android ios" jsonschema:"title=Platform,description=Target platform.,default=android,enum=android,enum=ios"`
}

// NewNativeDeveloper returns the tool to plan native Android or iOS development.
func NewNativeDeveloper() (*Tool[NativeDeveloperInput], error) {
	return newTool(definition[NativeDeveloperInput]{
		name:        NativeDeveloperName,
		description: "Produces the native Android or iOS implementation plan for a feature, performance optimization, integration or platform services.",
		label:       "development",
		selectorKey: "development_type",
		selectors:   []string{"feature", "optimization", "integration", "platform_service"},
		args: func(req *NativeDeveloperInput) *args {
			platform := values.StringsCoalesce(req.Platform, "android")
			return &args{
				selector: req.DevelopmentType,
				meta:     []meta{{key: "platform", value: platform}},
				data: map[string]any{
					"Spec":     req.FeatureSpec,
					"Platform": platform,
					"Android":  platform == "android",
				},
			}
		},
	})
}
