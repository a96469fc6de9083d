package prompts

import (
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/llmutils"
)

// PromptValue is the formatted prompt.
type PromptValue interface {
	String() string
	Messages() []llms.Message
}

// FormatPrompter produces a PromptValue from input values.
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (PromptValue, error)
	GetInputVariables() []string
}

// StringPromptValue is a prompt rendered to a single text.
type StringPromptValue string

// String returns the text.
func (v StringPromptValue) String() string { return string(v) }

// Messages returns the text as a single human message.
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, string(v))}
}

// PromptTemplate is a single text template.
type PromptTemplate struct {
	Template       string
	InputVariables []string
	TemplateFormat TemplateFormat
	// PartialVariables are defaults, overridden by the values passed to Format.
	PartialVariables map[string]any
}

var _ FormatPrompter = PromptTemplate{}

// NewPromptTemplate returns a go-template prompt.
func NewPromptTemplate(template string, inputVariables []string) PromptTemplate {
	return PromptTemplate{
		Template:       template,
		InputVariables: inputVariables,
		TemplateFormat: TemplateFormatGoTemplate,
	}
}

// NewJinja2PromptTemplate returns a jinja2 prompt.
func NewJinja2PromptTemplate(template string, inputVariables []string) PromptTemplate {
	return PromptTemplate{
		Template:       template,
		InputVariables: inputVariables,
		TemplateFormat: TemplateFormatJinja2,
	}
}

// Format renders the template.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	values = llmutils.MergeInputs(p.PartialVariables, values)
	if err := checkInputs(p.InputVariables, values); err != nil {
		return "", err
	}
	return RenderTemplate(p.Template, p.TemplateFormat, values)
}

// FormatPrompt renders the template into a StringPromptValue.
func (p PromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	s, err := p.Format(values)
	if err != nil {
		return nil, err
	}
	return StringPromptValue(s), nil
}

// GetInputVariables returns the declared input variables.
func (p PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// StaticPrompt is a prompt without input variables, rendered as is.
type StaticPrompt string

var _ FormatPrompter = StaticPrompt("")

// FormatPrompt returns the text, values are ignored.
func (p StaticPrompt) FormatPrompt(map[string]any) (PromptValue, error) {
	return StringPromptValue(p), nil
}

// GetInputVariables returns nil.
func (p StaticPrompt) GetInputVariables() []string {
	return nil
}
