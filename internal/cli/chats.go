package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/effective-security/x/slices"
	"github.com/spf13/cobra"
)

// ChatRow describes a stored chat.
type ChatRow struct {
	ChatID    string    `json:"chat_id" yaml:"chat_id"`
	Title     string    `json:"title" yaml:"title"`
	Messages  int       `json:"messages" yaml:"messages"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func newChatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage the stored conversation threads",
	}
	cmd.AddCommand(
		newChatsListCmd(a),
		newChatsShowCmd(a),
		newChatsDeleteCmd(a),
		newChatsCleanupCmd(a),
	)
	return cmd
}

func newChatsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chats of the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			ctx, _ := a.chatContext(cmd.Context(), "")
			ids, err := st.ListChats(ctx)
			if err != nil {
				return err
			}

			rows := make([]ChatRow, 0, len(ids))
			for _, id := range ids {
				info, err := st.GetChatInfo(ctx, id)
				if err != nil {
					return err
				}
				rows = append(rows, ChatRow{
					ChatID:    info.ChatID,
					Title:     info.Title,
					Messages:  len(info.Messages),
					UpdatedAt: info.UpdatedAt,
				})
			}
			return printOutput(cmd.OutOrStdout(), a.output, rows,
				[]string{"CHAT", "TITLE", "MESSAGES", "AGE"},
				func(r ChatRow) []string {
					return []string{r.ChatID, r.Title, strconv.Itoa(r.Messages), formatAge(r.UpdatedAt)}
				})
		},
	}
}

func newChatsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chat>",
		Short: "Print the messages of the chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			ctx, _ := a.chatContext(cmd.Context(), args[0])
			info, err := st.GetChatInfo(ctx, "")
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch a.output {
			case "json":
				return printJSON(w, info)
			case "yaml":
				return printYAML(w, info)
			}

			fmt.Fprintf(w, "%s: %s\n", info.ChatID, info.Title)
			for _, m := range info.Messages {
				content := m.GetContent()
				if !a.verbose {
					content = slices.StringUpto(content, 512)
				}
				fmt.Fprintf(w, "\n[%s]\n%s\n", m.Role, content)
			}
			return nil
		},
	}
}

func newChatsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chat>",
		Short: "Delete the chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			ctx, _ := a.chatContext(cmd.Context(), args[0])
			if _, err = st.GetChatInfo(ctx, ""); err != nil {
				return err
			}
			if err = st.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newChatsCleanupCmd(a *app) *cobra.Command {
	var (
		olderThan  time.Duration
		allTenants bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the chats not updated recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			tenants := []string{a.tenant}
			if allTenants {
				if tenants, err = st.ListTenants(cmd.Context()); err != nil {
					return err
				}
			}

			var total uint32
			for _, tenant := range tenants {
				deleted, err := st.Cleanup(cmd.Context(), tenant, olderThan)
				if err != nil {
					return err
				}
				total += deleted
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d chats\n", total)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete chats not updated within the duration")
	cmd.Flags().BoolVar(&allTenants, "all-tenants", false, "Clean up the chats of all tenants")
	return cmd
}
