// Package personas defines the members of the development agency: their role,
// instructions and tools.
package personas

import (
	"embed"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/effective-security/devagency/tools/artifact"
	"github.com/effective-security/devagency/tools/tavily"
)

//go:embed instructions/*.md
var content embed.FS

// Persona names
const (
	CEO                = "CEO"
	CTO                = "CTO"
	AIEngineer         = "AIEngineer"
	FullStackDeveloper = "FullStackDeveloper"
	MobileDeveloper    = "MobileDeveloper"
	UIUXDesigner       = "UIUXDesigner"
	QAEngineer         = "QAEngineer"
	DevOpsEngineer     = "DevOpsEngineer"
	DataEngineer       = "DataEngineer"
)

// ErrNotFound is returned for an unknown persona.
var ErrNotFound = errors.New("persona not found")

// Persona describes an agent of the agency.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	// Instructions is the name of the embedded instructions file.
	Instructions string `json:"instructions" yaml:"instructions"`
	// Tools must be registered for the persona to run.
	Tools []string `json:"tools" yaml:"tools"`
	// OptionalTools are attached only when registered, e.g. web search
	// without an API key.
	OptionalTools []string `json:"optional_tools,omitempty" yaml:"optional_tools,omitempty"`
	Temperature   float64  `json:"temperature" yaml:"temperature"`
}

var roster = []Persona{
	{
		Name:          CEO,
		Title:         "CEO",
		Description:   "Chief Executive Officer responsible for strategic planning, project management, and team coordination in the AI Application Development Agency.",
		Instructions:  "ceo.md",
		Tools:         []string{artifact.ProjectAnalyzerName, artifact.TeamCoordinatorName},
		OptionalTools: []string{tavily.ToolName},
		Temperature:   0.5,
	},
	{
		Name:          CTO,
		Title:         "CTO",
		Description:   "Chief Technology Officer responsible for technical strategy, architecture decisions, and technology stack selection in the AI Application Development Agency.",
		Instructions:  "cto.md",
		Tools:         []string{artifact.ArchitectureDesignerName, artifact.TechEvaluatorName},
		OptionalTools: []string{tavily.ToolName},
		Temperature:   0.4,
	},
	{
		Name:         AIEngineer,
		Title:        "AI Engineer",
		Description:  "AI/ML Engineer responsible for designing, developing, and deploying artificial intelligence and machine learning solutions, ensuring efficiency, scalability, and ethical implementation.",
		Instructions: "ai_engineer.md",
		Tools:        []string{artifact.ModelArchitectName, artifact.ModelTrainerName},
		Temperature:  0.3,
	},
	{
		Name:         FullStackDeveloper,
		Title:        "Full-Stack Developer",
		Description:  "Full-Stack Developer responsible for implementing both frontend and backend components, ensuring seamless integration between all layers of the system while following best practices.",
		Instructions: "fullstack_developer.md",
		Tools:        []string{artifact.BackendDeveloperName, artifact.FrontendDeveloperName},
		Temperature:  0.4,
	},
	{
		Name:         MobileDeveloper,
		Title:        "Mobile Developer",
		Description:  "Mobile Developer responsible for creating high-quality, performant mobile applications for both iOS and Android platforms, ensuring seamless user experiences and efficient resource usage.",
		Instructions: "mobile_developer.md",
		Tools:        []string{artifact.CrossPlatformName, artifact.NativeDeveloperName},
		Temperature:  0.4,
	},
	{
		Name:         UIUXDesigner,
		Title:        "UI/UX Designer",
		Description:  "UI/UX Designer responsible for creating intuitive, accessible, and visually appealing user interfaces and experiences that meet user needs and business goals.",
		Instructions: "uiux_designer.md",
		Tools:        []string{artifact.ExperienceDesignerName, artifact.InterfaceDesignerName},
		Temperature:  0.4,
	},
	{
		Name:         QAEngineer,
		Title:        "QA Engineer",
		Description:  "QA Engineer responsible for ensuring the quality, reliability, and performance of software applications through comprehensive testing strategies and quality analysis.",
		Instructions: "qa_engineer.md",
		Tools:        []string{artifact.QualityAnalyzerName, artifact.TestAutomatorName},
		Temperature:  0.3,
	},
	{
		Name:         DevOpsEngineer,
		Title:        "DevOps Engineer",
		Description:  "DevOps Engineer responsible for implementing and maintaining continuous integration and deployment pipelines, managing cloud infrastructure, and ensuring system reliability and scalability.",
		Instructions: "devops_engineer.md",
		Tools:        []string{artifact.InfrastructureManagerName, artifact.PipelineAutomatorName},
		Temperature:  0.3,
	},
	{
		Name:         DataEngineer,
		Title:        "Data Engineer",
		Description:  "Data Engineer responsible for designing, implementing, and maintaining data infrastructure and pipelines, ensuring efficient data collection, processing, storage, and accessibility.",
		Instructions: "data_engineer.md",
		Tools:        []string{artifact.DataArchitectName, artifact.DataPipelineManagerName},
		Temperature:  0.3,
	},
}

// All returns the personas in roster order.
func All() []Persona {
	res := make([]Persona, len(roster))
	for i, p := range roster {
		res[i] = p.clone()
	}
	return res
}

// Names returns the persona names in roster order.
func Names() []string {
	res := make([]string, len(roster))
	for i, p := range roster {
		res[i] = p.Name
	}
	return res
}

// Get returns the persona by name.
func Get(name string) (Persona, error) {
	for _, p := range roster {
		if p.Name == name {
			return p.clone(), nil
		}
	}
	return Persona{}, errors.Wrapf(ErrNotFound, "%q", name)
}

func (p Persona) clone() Persona {
	p.Tools = append([]string(nil), p.Tools...)
	p.OptionalTools = append([]string(nil), p.OptionalTools...)
	return p
}

// Instructions returns the embedded instructions file.
func Instructions(file string) (string, error) {
	b, err := content.ReadFile(path.Join("instructions", file))
	if err != nil {
		return "", errors.Wrapf(ErrNotFound, "instructions %q", file)
	}
	return strings.TrimSpace(string(b)), nil
}

// Member is an entry of the team section of the manifesto.
type Member struct {
	Name        string
	Description string
}

//go:embed manifesto.md
var manifestoTemplate string

var manifesto = prompts.NewJinja2PromptTemplate(manifestoTemplate, []string{"agency_name", "agents"})

// Manifesto renders the shared instructions of the agency.
func Manifesto(agencyName string, team []Member) (string, error) {
	agents := make([]map[string]any, len(team))
	for i, m := range team {
		agents[i] = map[string]any{
			"name":        m.Name,
			"description": m.Description,
		}
	}
	s, err := manifesto.Format(map[string]any{
		"agency_name": agencyName,
		"agents":      agents,
	})
	if err != nil {
		return "", errors.WithMessage(err, "failed to render manifesto")
	}
	return strings.TrimSpace(s), nil
}
