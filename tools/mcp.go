package tools

import (
	"context"

	mcp "github.com/metoro-io/mcp-golang"
)

// McpServerRegistrator registers tool handlers on an MCP server.
type McpServerRegistrator interface {
	RegisterTool(name string, description string, handler any) error
}

// IMCPTool is a tool that can be served by an MCP server.
type IMCPTool interface {
	ITool
	RegisterMCP(registrator McpServerRegistrator) error
}

// MCPTool is a typed IMCPTool.
type MCPTool[I any] interface {
	IMCPTool
	RunMCP(context.Context, *I) (*mcp.ToolResponse, error)
}
