package prompts

import (
	"github.com/effective-security/devagency/pkg/llms"
)

// ChatPromptValue is a prompt formatted as chat messages.
type ChatPromptValue []llms.Message

// String returns the messages as a chat transcript.
func (v ChatPromptValue) String() string {
	s, _ := llms.GetBufferString(v, "Human", "AI")
	return s
}

// Messages returns the messages.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}

// MessageFormatter formats values into chat messages.
type MessageFormatter interface {
	FormatMessages(values map[string]any) ([]llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate renders one message of the given role.
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

// NewSystemMessagePromptTemplate returns a system message template.
func NewSystemMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(template, inputVariables)}
}

// NewHumanMessagePromptTemplate returns a human message template.
func NewHumanMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(template, inputVariables)}
}

// NewAIMessagePromptTemplate returns an AI message template.
func NewAIMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleAI, Prompt: NewPromptTemplate(template, inputVariables)}
}

// FormatMessages renders the message.
func (p MessagePromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	text, err := p.Prompt.Format(values)
	if err != nil {
		return nil, err
	}
	return []llms.Message{llms.MessageFromTextParts(p.Role, text)}, nil
}

// GetInputVariables returns the declared input variables.
func (p MessagePromptTemplate) GetInputVariables() []string {
	return p.Prompt.InputVariables
}

// ChatPromptTemplate renders a sequence of message templates.
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

var _ FormatPrompter = ChatPromptTemplate{}

// NewChatPromptTemplate returns a chat prompt template.
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatMessages renders all messages.
func (p ChatPromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	var res []llms.Message
	for _, m := range p.Messages {
		msgs, err := m.FormatMessages(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msgs...)
	}
	return res, nil
}

// FormatPrompt renders all messages into a ChatPromptValue.
func (p ChatPromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	msgs, err := p.FormatMessages(values)
	if err != nil {
		return nil, err
	}
	return ChatPromptValue(msgs), nil
}

// GetInputVariables returns the union of the messages' input variables.
func (p ChatPromptTemplate) GetInputVariables() []string {
	lists := make([][]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		lists = append(lists, m.GetInputVariables())
	}
	return mergeVariables(lists...)
}
