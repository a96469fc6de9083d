package personas_test

import (
	"testing"

	"github.com/effective-security/devagency/personas"
	"github.com/effective-security/devagency/tools/artifact"
	"github.com/effective-security/devagency/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoster(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		personas.CEO,
		personas.CTO,
		personas.AIEngineer,
		personas.FullStackDeveloper,
		personas.MobileDeveloper,
		personas.UIUXDesigner,
		personas.QAEngineer,
		personas.DevOpsEngineer,
		personas.DataEngineer,
	}, personas.Names())

	artifacts, err := artifact.Tools()
	require.NoError(t, err)
	known := map[string]bool{}
	for _, tool := range artifacts {
		known[tool.Name()] = true
	}

	used := map[string]string{}
	for _, p := range personas.All() {
		assert.NotEmpty(t, p.Title, p.Name)
		assert.NotEmpty(t, p.Description, p.Name)
		assert.Greater(t, p.Temperature, 0.0, p.Name)
		assert.Len(t, p.Tools, 2, p.Name)
		for _, name := range p.Tools {
			assert.True(t, known[name], "%s: unknown tool %s", p.Name, name)
			assert.Empty(t, used[name], "%s is shared with %s", name, used[name])
			used[name] = p.Name
		}

		text, err := personas.Instructions(p.Instructions)
		require.NoError(t, err, p.Name)
		assert.Contains(t, text, "## Responsibilities", p.Name)
		for _, name := range p.Tools {
			assert.Contains(t, text, "`"+name+"`", p.Name)
		}
	}
	assert.Len(t, used, len(artifacts))
}

func TestGet(t *testing.T) {
	t.Parallel()

	p, err := personas.Get(personas.CTO)
	require.NoError(t, err)
	assert.Equal(t, 0.4, p.Temperature)
	assert.Equal(t, []string{tavily.ToolName}, p.OptionalTools)

	// returned values are copies
	p.Tools[0] = "changed"
	p2, err := personas.Get(personas.CTO)
	require.NoError(t, err)
	assert.Equal(t, artifact.ArchitectureDesignerName, p2.Tools[0])

	_, err = personas.Get("CFO")
	assert.ErrorIs(t, err, personas.ErrNotFound)

	_, err = personas.Instructions("cfo.md")
	assert.ErrorIs(t, err, personas.ErrNotFound)
}

func TestManifesto(t *testing.T) {
	t.Parallel()

	text, err := personas.Manifesto("Acme Dev", []personas.Member{
		{Name: "CEO", Description: "Runs the agency."},
		{Name: "CTO", Description: "Owns the architecture."},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "# Acme Dev Manifesto")
	assert.Contains(t, text, "- **CEO**: Runs the agency.")
	assert.Contains(t, text, "- **CTO**: Owns the architecture.")
	assert.Contains(t, text, "`send_message`")
}
