package agency

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/tools"
	"github.com/invopop/jsonschema"
)

// SendMessageToolName is the name of the tool to message another agent.
const SendMessageToolName = "send_message"

// SendMessageInput is the input of the send_message tool.
type SendMessageInput struct {
	Recipient string `json:"recipient" yaml:"recipient" validate:"required" jsonschema:"title=Recipient,description=Name of the agent to send the message to."`
	Message   string `json:"message" yaml:"message" validate:"required" jsonschema:"title=Message,description=The request for the recipient with all the context needed to act on it."`
}

// sendMessage is the send_message tool of a sender, the recipient enum of
// its schema lists the allowed recipients.
type sendMessage struct {
	*tools.Func[SendMessageInput, chatmodel.String]
	params *jsonschema.Schema
}

func newSendMessage(a *Agency, sender string, recipients []string) (*sendMessage, error) {
	f, err := tools.NewFunc(SendMessageToolName,
		"Sends a message to another agent of the agency and returns the reply. Use it to delegate a task or to ask a question.",
		func(ctx context.Context, req *SendMessageInput) (*chatmodel.String, error) {
			reply, err := a.Send(ctx, sender, req.Recipient, req.Message)
			if err != nil {
				if errors.Is(err, ErrFlowNotAllowed) || errors.Is(err, ErrMaxDepth) || errors.Is(err, ErrAgentNotFound) {
					// the model can recover by choosing another recipient or answering itself
					return chatmodel.NewString("Message not delivered: " + err.Error()), nil
				}
				// the recipient failed, the run of the sender stops with its error
				return nil, tools.Fatal(err)
			}
			return chatmodel.NewString(reply), nil
		})
	if err != nil {
		return nil, err
	}
	return &sendMessage{
		Func:   f,
		params: withRecipients(f.Parameters(), recipients),
	}, nil
}

// Parameters returns the input schema restricted to the allowed recipients.
func (t *sendMessage) Parameters() *jsonschema.Schema {
	return t.params
}

// withRecipients returns a copy of the schema with the recipient enum,
// the reflected schema is shared between the tools.
func withRecipients(base *jsonschema.Schema, recipients []string) *jsonschema.Schema {
	cp := *base
	cp.Properties = jsonschema.NewProperties()
	for pair := base.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := *pair.Value
		if pair.Key == "recipient" {
			prop.Enum = make([]any, len(recipients))
			for i, r := range recipients {
				prop.Enum[i] = r
			}
		}
		cp.Properties.Set(pair.Key, &prop)
	}
	return &cp
}
