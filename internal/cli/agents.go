package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/effective-security/devagency/agency"
	"github.com/spf13/cobra"
)

// AgentRow describes an agent of the manifest.
type AgentRow struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description" yaml:"description"`
	Tools           []string `json:"tools" yaml:"tools"`
	OptionalTools   []string `json:"optional_tools,omitempty" yaml:"optional_tools,omitempty"`
	Recipients      []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Temperature     float64  `json:"temperature" yaml:"temperature"`
	MaxPromptTokens int      `json:"max_prompt_tokens" yaml:"max_prompt_tokens"`
	Entry           bool     `json:"entry,omitempty" yaml:"entry,omitempty"`
}

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agents of the agency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}

			rows := make([]AgentRow, len(m.Agents))
			for i, am := range m.Agents {
				rows[i] = AgentRow{
					Name:            am.Name,
					Description:     am.Description,
					Tools:           am.Tools,
					OptionalTools:   am.OptionalTools,
					Recipients:      m.Recipients(am.Name),
					Temperature:     m.Defaults.GetTemperature(),
					MaxPromptTokens: am.MaxPromptTokens,
					Entry:           am.Name == m.Entry,
				}
				if am.Temperature != nil {
					rows[i].Temperature = *am.Temperature
				}
			}

			return printOutput(cmd.OutOrStdout(), a.output, rows,
				[]string{"NAME", "TEMPERATURE", "TOOLS", "RECIPIENTS"},
				func(r AgentRow) []string {
					name := r.Name
					if r.Entry {
						name += " *"
					}
					return []string{
						name,
						fmt.Sprintf("%.1f", r.Temperature),
						strings.Join(slices.Concat(r.Tools, r.OptionalTools), ","),
						dashIfEmpty(strings.Join(r.Recipients, ",")),
					}
				})
		},
	}
}

func newFlowsCmd(a *app) *cobra.Command {
	var chart bool

	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List the communication flows between the agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			if chart {
				_, err = fmt.Fprint(cmd.OutOrStdout(), m.Chart())
				return err
			}
			return printOutput(cmd.OutOrStdout(), a.output, m.CommunicationFlows(),
				[]string{"SENDER", "RECIPIENT"},
				func(f agency.Flow) []string {
					return []string{f.Sender, f.Recipient}
				})
		},
	}
	cmd.Flags().BoolVar(&chart, "chart", false, "Print the flows chart")
	return cmd
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
