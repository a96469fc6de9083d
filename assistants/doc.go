// Package assistants runs an LLM persona: it builds the system prompt,
// replays the chat history from the store, calls the model, executes the
// requested tools in parallel and parses the final answer.
package assistants
