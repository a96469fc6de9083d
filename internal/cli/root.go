// Package cli implements the devagency command line.
package cli

import (
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/devagency", "cli")

// Store types
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

// app holds the global flags shared by the commands.
type app struct {
	llmConfig  string
	manifest   string
	storeType  string
	dataDir    string
	redisURL   string
	tenant     string
	output     string
	verbose    bool
	noColor    bool
	transcript string
}

// NewRootCmd creates the top-level devagency command with all subcommands.
func NewRootCmd() *cobra.Command {
	a := new(app)

	cmd := &cobra.Command{
		Use:   "devagency",
		Short: "AI application development agency",
		Long: `devagency runs a team of AI agents, from the CEO to the Data Engineer,
that plan, design and build applications. The user talks to the entry agent,
the agents delegate work to each other along the configured flows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setupLogging(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.llmConfig, "llm-config", "", "LLM providers config file, the API keys from the environment are used when not set")
	f.StringVar(&a.manifest, "manifest", "", "Agency manifest file, the built-in agency is used when not set")
	f.StringVar(&a.storeType, "store", StoreMemory, "Chat store: memory|bolt|redis")
	f.StringVar(&a.dataDir, "data-dir", "", "Data directory of the bolt store (default: ~/.devagency)")
	f.StringVar(&a.redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL of the redis store")
	f.StringVar(&a.tenant, "tenant", "default", "Tenant of the chats")
	f.StringVarP(&a.output, "output", "o", "table", "Output format: table|json|yaml")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Print the agent events with the content and debug logs")
	f.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newAskCmd(a),
		newRunCmd(a),
		newAgentsCmd(a),
		newFlowsCmd(a),
		newToolsCmd(a),
		newChatsCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)

	return cmd
}

func (a *app) setupLogging(cmd *cobra.Command) {
	xlog.SetFormatter(xlog.NewStringFormatter(cmd.ErrOrStderr()))
	if a.verbose {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}
}
