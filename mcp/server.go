// Package mcp serves the agency tools over the Model Context Protocol.
package mcp

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/xlog"
	mcpgolang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "mcp")

// NewServer returns the MCP server with the tools registered,
// the tools that do not implement tools.IMCPTool are skipped.
// The server must be started with Serve.
func NewServer(tr transport.Transport, list ...tools.ITool) (*mcpgolang.Server, error) {
	srv := mcpgolang.NewServer(tr)
	for _, t := range list {
		mt, ok := t.(tools.IMCPTool)
		if !ok {
			logger.KV(xlog.WARNING,
				"status", "skip_tool",
				"tool", t.Name(),
			)
			continue
		}
		// registered before Serve, so no list_changed notification is sent
		if err := mt.RegisterMCP(srv); err != nil {
			return nil, errors.WithMessagef(err, "unable to register tool %s", t.Name())
		}
		logger.KV(xlog.DEBUG, "status", "registered", "tool", t.Name())
	}
	return srv, nil
}

// Serve starts the server with the tools of the registry and blocks
// until ctx is done.
func Serve(ctx context.Context, tr transport.Transport, registry *tools.Registry) error {
	srv, err := NewServer(tr, registry.List()...)
	if err != nil {
		return err
	}
	if err = srv.Serve(); err != nil {
		return errors.Wrap(err, "unable to start MCP server")
	}
	logger.KV(xlog.INFO, "status", "serving", "tools", len(registry.Names()))

	<-ctx.Done()
	if err = tr.Close(); err != nil {
		logger.KV(xlog.ERROR, "status", "close_failed", "err", err.Error())
	}
	logger.KV(xlog.INFO, "status", "stopped")
	return nil
}
