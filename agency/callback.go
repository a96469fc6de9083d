package agency

import (
	"context"

	"github.com/effective-security/devagency/assistants"
)

// Callback receives the agency events in addition to the assistant events.
type Callback interface {
	assistants.Callback
	// OnMessageRouted is called before the recipient handles the message.
	OnMessageRouted(ctx context.Context, sender, recipient, message string)
	// OnMessageDenied is called when the message is not allowed by the flows
	// or exceeds the delegation depth.
	OnMessageDenied(ctx context.Context, sender, recipient string, err error)
}
