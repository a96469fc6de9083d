// Package llms defines the provider neutral chat model interface used by the
// agency: messages with typed parts, tool definitions, call options and
// provider capabilities.
//
// Provider implementations live in the subpackages.
package llms
