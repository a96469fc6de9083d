package agency

import (
	_ "embed"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/encoding"
	"github.com/effective-security/devagency/personas"
	"github.com/effective-security/x/values"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Defaults of the manifest
const (
	DefaultName            = "AI Application Development Agency"
	DefaultTemperature     = 0.5
	DefaultMaxPromptTokens = 25000
	DefaultMaxDepth        = 5
	// BytesPerToken approximates the prompt size limit from the token limit.
	BytesPerToken = 4
)

// ErrInvalidManifest is returned when the manifest fails validation.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest describes the agents of the agency and who can talk to whom.
type Manifest struct {
	Name string `json:"name" yaml:"name"`
	// Entry is the agent that receives the user messages.
	Entry string `json:"entry" yaml:"entry"`
	// MaxDepth limits the chain of delegated messages.
	MaxDepth int              `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Defaults Defaults         `json:"defaults" yaml:"defaults"`
	Agents   []*AgentManifest `json:"agents" yaml:"agents"`
	// Flows are [sender, recipient] pairs.
	Flows [][]string `json:"flows" yaml:"flows"`

	// dir resolves relative instructions files
	dir string
}

// Defaults apply to the agents that do not override them.
type Defaults struct {
	// Temperature is DefaultTemperature when not set, 0 is a valid value.
	Temperature     *float64      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxPromptTokens int           `json:"max_prompt_tokens" yaml:"max_prompt_tokens"`
	Mode            encoding.Mode `json:"mode" yaml:"mode"`
	Model           string        `json:"model,omitempty" yaml:"model,omitempty"`
}

// GetTemperature returns the default temperature of the agents.
func (d Defaults) GetTemperature() float64 {
	if d.Temperature == nil {
		return DefaultTemperature
	}
	return *d.Temperature
}

// AgentManifest describes an agent, empty fields are taken from the
// persona with the same name.
type AgentManifest struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Instructions is a Markdown file, relative to the manifest.
	Instructions    string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Tools           []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	OptionalTools   []string `json:"optional_tools,omitempty" yaml:"optional_tools,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxPromptTokens int      `json:"max_prompt_tokens,omitempty" yaml:"max_prompt_tokens,omitempty"`
	// Model is the preferred model name, the LLM config decides otherwise.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	persona      bool
	instructions string
}

// DefaultManifest returns the embedded manifest.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest, "")
}

// LoadManifest returns the manifest from file, or the embedded one when
// file is empty.
func LoadManifest(file string) (*Manifest, error) {
	if file == "" {
		return DefaultManifest()
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseManifest(b, filepath.Dir(file))
}

// ParseManifest parses the YAML manifest, dir is used to resolve
// the instructions files.
func ParseManifest(b []byte, dir string) (*Manifest, error) {
	m := new(Manifest)
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, errors.Wrap(err, "unable to parse manifest")
	}
	m.dir = dir
	if err := m.resolve(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// resolve applies the defaults and loads the instructions.
func (m *Manifest) resolve() error {
	m.Name = values.StringsCoalesce(m.Name, DefaultName)
	m.MaxDepth = values.NumbersCoalesce(m.MaxDepth, DefaultMaxDepth)
	if m.Defaults.Temperature == nil {
		t := DefaultTemperature
		m.Defaults.Temperature = &t
	}
	m.Defaults.MaxPromptTokens = values.NumbersCoalesce(m.Defaults.MaxPromptTokens, DefaultMaxPromptTokens)
	m.Defaults.Mode = values.StringsCoalesce(m.Defaults.Mode, encoding.ModePlainText)

	for _, a := range m.Agents {
		if a == nil {
			return errors.Wrap(ErrInvalidManifest, "empty agent")
		}
		if p, err := personas.Get(a.Name); err == nil {
			a.persona = true
			a.Description = values.StringsCoalesce(a.Description, p.Description)
			if len(a.Tools) == 0 {
				a.Tools = p.Tools
			}
			if len(a.OptionalTools) == 0 {
				a.OptionalTools = p.OptionalTools
			}
			if a.Temperature == nil {
				t := p.Temperature
				a.Temperature = &t
			}
			if a.Instructions == "" {
				text, err := personas.Instructions(p.Instructions)
				if err != nil {
					return err
				}
				a.instructions = text
			}
		}
		if a.Temperature == nil {
			t := m.Defaults.GetTemperature()
			a.Temperature = &t
		}
		a.MaxPromptTokens = values.NumbersCoalesce(a.MaxPromptTokens, m.Defaults.MaxPromptTokens)
		a.Model = values.StringsCoalesce(a.Model, m.Defaults.Model)

		if a.Instructions != "" {
			file := a.Instructions
			if !filepath.IsAbs(file) && m.dir != "" {
				file = filepath.Join(m.dir, file)
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrapf(ErrInvalidManifest, "agent %q: unable to read instructions: %s", a.Name, err.Error())
			}
			a.instructions = string(b)
		}
	}
	return nil
}

// Validate checks the agents and the flows.
func (m *Manifest) Validate() error {
	names := make(map[string]bool, len(m.Agents))
	for _, a := range m.Agents {
		if a.Name == "" {
			return errors.Wrap(ErrInvalidManifest, "agent name is required")
		}
		if names[a.Name] {
			return errors.Wrapf(ErrInvalidManifest, "duplicate agent %q", a.Name)
		}
		names[a.Name] = true
		if a.instructions == "" {
			return errors.Wrapf(ErrInvalidManifest, "agent %q: instructions are required", a.Name)
		}
		if a.Description == "" {
			return errors.Wrapf(ErrInvalidManifest, "agent %q: description is required", a.Name)
		}
	}

	if m.Entry == "" {
		return errors.Wrap(ErrInvalidManifest, "entry agent is required")
	}
	if !names[m.Entry] {
		return errors.Wrapf(ErrInvalidManifest, "unknown entry agent %q", m.Entry)
	}

	seen := make(map[Flow]bool, len(m.Flows))
	for _, pair := range m.Flows {
		if len(pair) != 2 {
			return errors.Wrapf(ErrInvalidManifest, "flow must be a [sender, recipient] pair: %v", pair)
		}
		f := Flow{Sender: pair[0], Recipient: pair[1]}
		for _, name := range pair {
			if !names[name] {
				return errors.Wrapf(ErrInvalidManifest, "flow %s: unknown agent %q", f, name)
			}
		}
		if f.Sender == f.Recipient {
			return errors.Wrapf(ErrInvalidManifest, "flow %s: agent can not message itself", f)
		}
		if seen[f] {
			return errors.Wrapf(ErrInvalidManifest, "duplicate flow %s", f)
		}
		seen[f] = true
	}
	return nil
}

// AgentNames returns the agent names in manifest order.
func (m *Manifest) AgentNames() []string {
	res := make([]string, len(m.Agents))
	for i, a := range m.Agents {
		res[i] = a.Name
	}
	return res
}

// IsPersona returns true when the agent is a built-in persona.
func (a *AgentManifest) IsPersona() bool {
	return a.persona
}

// Agent returns the agent by name.
func (m *Manifest) Agent(name string) (*AgentManifest, bool) {
	i := slices.IndexFunc(m.Agents, func(a *AgentManifest) bool { return a.Name == name })
	if i < 0 {
		return nil, false
	}
	return m.Agents[i], true
}

// CommunicationFlows returns the flows in manifest order.
func (m *Manifest) CommunicationFlows() []Flow {
	res := make([]Flow, 0, len(m.Flows))
	for _, f := range m.Flows {
		if len(f) == 2 {
			res = append(res, Flow{Sender: f[0], Recipient: f[1]})
		}
	}
	return res
}

// Recipients returns the agents the sender can message, in flow order.
func (m *Manifest) Recipients(sender string) []string {
	var res []string
	for _, f := range m.Flows {
		if len(f) == 2 && f[0] == sender {
			res = append(res, f[1])
		}
	}
	return res
}

// Chart returns a text rendering of the communication flows.
func (m *Manifest) Chart() string {
	recipients := make(map[string][]string, len(m.Agents))
	for _, name := range m.AgentNames() {
		recipients[name] = m.Recipients(name)
	}
	return chart(m.Name, m.Entry, m.AgentNames(), recipients)
}
