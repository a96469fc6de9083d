package prompts_test

import (
	"testing"

	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatPromptTemplate(t *testing.T) {
	t.Parallel()

	template := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(
			"You are the {{.role}} of {{.agency}}.",
			[]string{"role", "agency"},
		),
		prompts.NewHumanMessagePromptTemplate(
			`Plan the {{.project | upper}} project.`,
			[]string{"project"},
		),
	})
	assert.Equal(t, []string{"role", "agency", "project"}, template.GetInputVariables())

	value, err := template.FormatPrompt(map[string]any{
		"role":    "CTO",
		"agency":  "Dev Agency",
		"project": "crm",
	})
	require.NoError(t, err)
	assert.Equal(t, []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are the CTO of Dev Agency."),
		llms.MessageFromTextParts(llms.RoleHuman, "Plan the CRM project."),
	}, value.Messages())
	assert.Equal(t, "System: You are the CTO of Dev Agency.\nHuman: Plan the CRM project.", value.String())

	_, err = template.FormatPrompt(map[string]any{"role": "CTO", "agency": "x"})
	assert.ErrorIs(t, err, prompts.ErrMissingVariable)
}

func TestPromptTemplate(t *testing.T) {
	t.Parallel()

	p := prompts.NewPromptTemplate("Hello {{.name}}", []string{"name"})
	p.PartialVariables = map[string]any{"name": "team"}

	s, err := p.Format(nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello team", s)

	v, err := p.FormatPrompt(map[string]any{"name": "CEO"})
	require.NoError(t, err)
	assert.Equal(t, "Hello CEO", v.String())
	assert.Equal(t, llms.RoleHuman, v.Messages()[0].Role)

	// undeclared variables are still reported by the template engine
	_, err = prompts.NewPromptTemplate("Hello {{.who}}", nil).Format(map[string]any{})
	assert.Error(t, err)
}

func TestJinja2(t *testing.T) {
	t.Parallel()

	p := prompts.NewJinja2PromptTemplate("Agents:{% for a in agents %} {{ a }}{% endfor %}", []string{"agents"})
	s, err := p.Format(map[string]any{"agents": []string{"CEO", "CTO"}})
	require.NoError(t, err)
	assert.Equal(t, "Agents: CEO CTO", s)

	_, err = prompts.RenderTemplate("x", "mustache", nil)
	assert.EqualError(t, err, "unsupported template format: mustache")
}

func TestStaticPrompt(t *testing.T) {
	t.Parallel()

	p := prompts.StaticPrompt("Use {{ braces }} as is")
	v, err := p.FormatPrompt(map[string]any{"braces": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Use {{ braces }} as is", v.String())
	assert.Empty(t, p.GetInputVariables())
}
