package artifact

import (
	"github.com/effective-security/x/values"
)

// ExperienceDesignerInput is the input of the experience_designer tool.
type ExperienceDesignerInput struct {
	DesignSpec map[string]any `json:"design_spec" yaml:"design_spec" validate:"required" jsonschema:"title=Design Specification,description=Design specification including user requirements and goals and constraints."`
	DesignType string         `json:"design_type" yaml:"design_type" jsonschema:"title=Design Type,description=Type of design needed.,enum=research,enum=architecture,enum=interaction,enum=testing"`
	Platform   string         `json:"platform,omitempty" yaml:"platform,omitempty" validate:"omitempty,oneof=web mobile desktop" jsonschema:"title=Platform,description=Target platform.,default=web,enum=web,enum=mobile,enum=desktop"`
}

// InterfaceDesignerInput is the input of the interface_designer tool.
type InterfaceDesignerInput struct {
	DesignSpec map[string]any `json:"design_spec" yaml:"design_spec" validate:"required" jsonschema:"title=Design Specification,description=Design specification including visual requirements and brand guidelines and component needs."`
	DesignType string         `json:"design_type" yaml:"design_type" jsonschema:"title=Design Type,description=Type of design needed.,enum=visual,enum=components,enum=system,enum=prototype"`
	Platform   string         `json:"platform,omitempty" yaml:"platform,omitempty" validate:"omitempty,oneof=web mobile desktop" jsonschema:"title=Platform,description=Target platform.,default=web,enum=web,enum=mobile,enum=desktop"`
}

// platformProfile is the layout guidance for a target platform.
type platformProfile struct {
	Navigation  string
	Input       string
	Breakpoints []string
	BaseFont    int
	TouchTarget int
	Grid        int
}

var platformProfiles = map[string]platformProfile{
	"web":     {Navigation: "top navigation bar with breadcrumbs", Input: "mouse and keyboard", Breakpoints: []string{"640px", "768px", "1024px", "1280px"}, BaseFont: 16, TouchTarget: 32, Grid: 12},
	"mobile":  {Navigation: "bottom tab bar", Input: "touch and gestures", Breakpoints: []string{"360px", "414px"}, BaseFont: 17, TouchTarget: 48, Grid: 4},
	"desktop": {Navigation: "sidebar with menu bar", Input: "mouse and keyboard shortcuts", Breakpoints: []string{"1024px", "1440px", "1920px"}, BaseFont: 14, TouchTarget: 24, Grid: 12},
}

func designArgs(spec map[string]any, designType, platform string) *args {
	platform = values.StringsCoalesce(platform, "web")
	return &args{
		selector: designType,
		meta:     []meta{{key: "platform", value: platform}},
		data: map[string]any{
			"Spec":     spec,
			"Platform": platform,
			"Profile":  platformProfiles[platform],
		},
	}
}

// NewExperienceDesigner returns the tool to plan user research, information architecture, interactions and usability testing.
func NewExperienceDesigner() (*Tool[ExperienceDesignerInput], error) {
	return newTool(definition[ExperienceDesignerInput]{
		name:        ExperienceDesignerName,
		description: "Designs the user experience: user research, information architecture, interaction design or usability testing.",
		label:       "design",
		selectorKey: "design_type",
		selectors:   []string{"research", "architecture", "interaction", "testing"},
		args: func(req *ExperienceDesignerInput) *args {
			return designArgs(req.DesignSpec, req.DesignType, req.Platform)
		},
	})
}

// NewInterfaceDesigner returns the tool to design the visual interface.
func NewInterfaceDesigner() (*Tool[InterfaceDesignerInput], error) {
	return newTool(definition[InterfaceDesignerInput]{
		name:        InterfaceDesignerName,
		description: "Designs the user interface: visual language, components, design system or an interactive prototype.",
		label:       "design",
		selectorKey: "design_type",
		selectors:   []string{"visual", "components", "system", "prototype"},
		args: func(req *InterfaceDesignerInput) *args {
			return designArgs(req.DesignSpec, req.DesignType, req.Platform)
		},
	})
}
