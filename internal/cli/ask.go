package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/callbacks"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// AskResult is the reply of the agent.
type AskResult struct {
	ChatID string `json:"chat_id" yaml:"chat_id"`
	Agent  string `json:"agent" yaml:"agent"`
	Reply  string `json:"reply" yaml:"reply"`
}

// session is the agency with the chat store and the event printers.
type session struct {
	agency     *agency.Agency
	transcript *callbacks.Transcript
	file       string
	close      func()
}

func (a *app) newSession(cmd *cobra.Command, transcriptFile string) (*session, error) {
	st, closer, err := a.openStore()
	if err != nil {
		return nil, err
	}

	printer := callbacks.NewPrinter(cmd.ErrOrStderr(), a.mode()).WithColor(!a.noColor)
	cbs := []agency.Callback{printer}

	s := &session{file: transcriptFile, close: closer}
	if transcriptFile != "" {
		s.transcript = callbacks.NewTranscript(a.mode())
		cbs = append(cbs, s.transcript)
	}

	s.agency, _, err = a.newAgency(st, cbs...)
	if err != nil {
		closer()
		return nil, err
	}
	return s, nil
}

// ask sends the message to the agent, and appends the run transcript
// to the file when enabled.
func (s *session) ask(ctx context.Context, agentName, message string) (string, error) {
	if s.transcript != nil {
		s.transcript.StartRun(ctx)
		defer s.saveTranscript(ctx)
	}
	return s.agency.AskAgent(ctx, agentName, message)
}

func (s *session) saveTranscript(ctx context.Context) {
	stats, b := s.transcript.EndRun(ctx)
	if stats == nil {
		return
	}
	f, err := os.OpenFile(s.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err == nil {
		_, err = f.Write(b)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "failed_to_save_transcript",
			"file", s.file,
			"err", err.Error(),
		)
		return
	}
	logger.ContextKV(ctx, xlog.INFO,
		"status", "run_completed",
		"chat_id", stats.ChatID,
		"duration", stats.Duration.String(),
		"llm_calls", stats.AssistantLLMCalls,
		"tool_calls", stats.ToolsCalls,
		"messages_routed", stats.MessagesRouted,
	)
}

func newAskCmd(a *app) *cobra.Command {
	var (
		agentName  string
		chatID     string
		transcript string
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send a message to the agency and print the reply",
		Example: `  devagency ask "Build a mobile app for booking yoga classes"
  devagency ask --agent CTO --chat 2f6c "Which database should we use?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return errors.New("message is required")
			}

			s, err := a.newSession(cmd, transcript)
			if err != nil {
				return err
			}
			defer s.close()

			agentName = values.StringsCoalesce(agentName, s.agency.Entry())
			ctx, id := a.chatContext(cmd.Context(), chatID)
			reply, err := s.ask(ctx, agentName, message)
			if err != nil {
				return err
			}

			res := AskResult{ChatID: id, Agent: agentName, Reply: reply}
			w := cmd.OutOrStdout()
			switch a.output {
			case "json":
				return printJSON(w, res)
			case "yaml":
				return printYAML(w, res)
			}
			fmt.Fprintln(w, reply)
			fmt.Fprintf(cmd.ErrOrStderr(), "\nchat: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "Agent to ask, the entry agent by default")
	cmd.Flags().StringVar(&chatID, "chat", "", "Chat to continue, a new chat is started when not set")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Append the run transcript to the file")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var (
		agentName  string
		chatID     string
		transcript string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session with the agency",
		Long:  "Start an interactive session with the agency. Type exit or quit to end the session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd, transcript)
			if err != nil {
				return err
			}
			defer s.close()

			agentName = values.StringsCoalesce(agentName, s.agency.Entry())
			ctx, id := a.chatContext(cmd.Context(), chatID)

			out := cmd.OutOrStdout()
			banner := color.New(color.FgCyan, color.Bold)
			if a.noColor {
				banner.DisableColor()
			}
			banner.Fprintln(out, s.agency.Name())
			fmt.Fprintf(out, "   Agent: %s\n", agentName)
			fmt.Fprintf(out, "   Chat:  %s\n", id)
			fmt.Fprintln(out, "   Type exit or quit to end the session.")

			return repl(ctx, cmd, func(line string) {
				reply, err := s.ask(ctx, agentName, line)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					return
				}
				fmt.Fprintf(out, "\n%s\n", reply)
			})
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "Agent to talk to, the entry agent by default")
	cmd.Flags().StringVar(&chatID, "chat", "", "Chat to continue, a new chat is started when not set")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Append the run transcripts to the file")
	return cmd
}

// repl calls handle for every non-empty input line until exit, quit or EOF.
func repl(ctx context.Context, cmd *cobra.Command, handle func(line string)) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(cmd.OutOrStdout(), "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout())
			return errors.WithStack(scanner.Err())
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handle(line)
	}
}
