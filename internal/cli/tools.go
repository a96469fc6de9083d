package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/x/slices"
	"github.com/spf13/cobra"
)

// ToolRow describes a registered tool.
type ToolRow struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and call the agent tools",
	}
	cmd.AddCommand(
		newToolsListCmd(a),
		newToolsSchemaCmd(a),
		newToolsCallCmd(a),
	)
	return cmd
}

func newToolsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.registry()
			if err != nil {
				return err
			}
			list := registry.List()
			rows := make([]ToolRow, len(list))
			for i, t := range list {
				rows[i] = ToolRow{Name: t.Name(), Description: t.Description()}
			}
			return printOutput(cmd.OutOrStdout(), a.output, rows,
				[]string{"NAME", "DESCRIPTION"},
				func(r ToolRow) []string {
					return []string{r.Name, slices.StringUpto(r.Description, 80)}
				})
		},
	}
}

func (a *app) lookupTool(name string) (tools.ITool, error) {
	registry, err := a.registry()
	if err != nil {
		return nil, err
	}
	t, ok := registry.Get(name)
	if !ok {
		return nil, errors.Wrapf(tools.ErrToolNotFound, "tool %q", name)
	}
	return t, nil
}

func newToolsSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <name>",
		Short: "Print the input schema of the tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.lookupTool(args[0])
			if err != nil {
				return err
			}
			if a.output == "yaml" {
				return printYAML(cmd.OutOrStdout(), t.Parameters())
			}
			return printJSON(cmd.OutOrStdout(), t.Parameters())
		},
	}
}

func newToolsCallCmd(a *app) *cobra.Command {
	var (
		input string
		file  string
	)

	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Call the tool with the JSON input",
		Example: `  devagency tools call test_automator --input '{"test_config":{"component":"auth"},"test_type":"e2e"}'
  devagency tools call data_architect -f design.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.lookupTool(args[0])
			if err != nil {
				return err
			}

			switch {
			case file == "-":
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.WithStack(err)
				}
				input = string(b)
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return errors.WithStack(err)
				}
				input = string(b)
			}

			ctx, _ := a.chatContext(cmd.Context(), "")
			out, err := t.Call(ctx, input)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "{}", "Tool input as JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with the tool input, - for stdin")
	return cmd
}
