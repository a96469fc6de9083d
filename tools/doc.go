// Package tools defines the tool interface exposed to agents, a registry
// keyed by case-insensitive name, and a typed adapter that turns a Go
// function into a tool with a JSON schema derived from its input type.
package tools
