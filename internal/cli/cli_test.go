package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/internal/cli"
	"github.com/effective-security/devagency/pkg/llms"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/devagency/tools/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAgents(t *testing.T) {
	out, _, err := execute(t, "", "agents")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "NAME"), out)
	assert.Contains(t, out, "CEO *")
	assert.Contains(t, out, artifact.ProjectAnalyzerName+","+artifact.TeamCoordinatorName)

	out, _, err = execute(t, "", "agents", "-o", "json")
	require.NoError(t, err)
	var rows []cli.AgentRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 9)
	assert.Equal(t, "CEO", rows[0].Name)
	assert.True(t, rows[0].Entry)
	assert.Len(t, rows[0].Recipients, 8)
	assert.Equal(t, 0.5, rows[0].Temperature)
	assert.Equal(t, 25000, rows[0].MaxPromptTokens)
	assert.Equal(t, "DataEngineer", rows[8].Name)
	assert.False(t, rows[8].Entry)
	assert.Empty(t, rows[8].Recipients)
	assert.Equal(t, 0.3, rows[8].Temperature)

	_, _, err = execute(t, "", "agents", "-o", "xml")
	assert.EqualError(t, err, "unsupported output format: xml")
}

func TestAgents_CustomManifest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "agency.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: Tiny Shop
entry: CEO
agents:
  - name: CEO
  - name: QAEngineer
flows:
  - [CEO, QAEngineer]
`), 0o600))

	out, _, err := execute(t, "", "flows", "--chart", "--manifest", file)
	require.NoError(t, err)
	assert.Equal(t, "Tiny Shop\n"+
		"user       --> CEO\n"+
		"CEO        --> QAEngineer\n"+
		"QAEngineer  (no outgoing flows)\n", out)

	require.NoError(t, os.WriteFile(file, []byte(`
entry: CFO
agents:
  - name: CEO
`), 0o600))
	_, _, err = execute(t, "", "agents", "--manifest", file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, agency.ErrInvalidManifest))
}

func TestFlows(t *testing.T) {
	out, _, err := execute(t, "", "flows")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 37)
	assert.Equal(t, []string{"SENDER", "RECIPIENT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"CEO", "CTO"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"DevOpsEngineer", "DataEngineer"}, strings.Fields(lines[36]))

	out, _, err = execute(t, "", "flows", "-o", "yaml")
	require.NoError(t, err)
	var flows []agency.Flow
	require.NoError(t, yaml.Unmarshal([]byte(out), &flows))
	assert.Len(t, flows, 36)

	out, _, err = execute(t, "", "flows", "--chart")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, agency.DefaultName+"\n"), out)
	assert.Contains(t, out, "user               --> CEO\n")
	assert.Contains(t, out, "DataEngineer        (no outgoing flows)\n")
}

func TestTools(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")

	out, _, err := execute(t, "", "tools", "list", "-o", "json")
	require.NoError(t, err)
	var rows []cli.ToolRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 18)
	assert.Equal(t, artifact.ArchitectureDesignerName, rows[0].Name)
	assert.NotEmpty(t, rows[0].Description)

	out, _, err = execute(t, "", "tools", "schema", artifact.TestAutomatorName)
	require.NoError(t, err)
	assert.Contains(t, out, `"test_type"`)

	input := `{"test_config":{"component":"auth"},"test_type":"e2e"}`
	out, _, err = execute(t, "", "tools", "call", artifact.TestAutomatorName, "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, `"framework": "cypress"`)

	// input from stdin
	out, _, err = execute(t, input, "tools", "call", artifact.TestAutomatorName, "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"test_type": "e2e"`)

	_, _, err = execute(t, "", "tools", "call", "crystal_ball")
	assert.True(t, errors.Is(err, tools.ErrToolNotFound))

	_, _, err = execute(t, "", "tools", "call", artifact.TestAutomatorName, "--input", `{"test_type":"e2e"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

// syncBuffer is written by the server goroutines.
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestMCP(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")

	cmd := cli.NewRootCmd()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}` + "\n"))
	cmd.SetArgs([]string{"mcp"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), artifact.TestAutomatorName)
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, out.String(), `"id":1`)
	assert.Contains(t, out.String(), artifact.DataPipelineManagerName)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mcp command did not stop")
	}
}

func seedBolt(t *testing.T, dir string) {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(dir, cli.BoltFile))
	require.NoError(t, err)
	defer st.Close()

	for _, c := range []struct{ tenant, chat string }{
		{"acme", "c1/user->CEO"},
		{"acme", "c1/CEO->CTO"},
		{"other", "c2/user->CEO"},
	} {
		ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext(c.tenant, c.chat, nil))
		require.NoError(t, st.Add(ctx,
			llms.MessageFromTextParts(llms.RoleHuman, "Build a CRM"),
			llms.MessageFromTextParts(llms.RoleAI, "On it"),
		))
	}
}

func TestChats(t *testing.T) {
	dir := t.TempDir()
	seedBolt(t, dir)
	flags := []string{"--store", "bolt", "--data-dir", dir, "--tenant", "acme"}

	out, _, err := execute(t, "", append([]string{"chats", "list", "-o", "json"}, flags...)...)
	require.NoError(t, err)
	var rows []cli.ChatRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	ids := []string{rows[0].ChatID, rows[1].ChatID}
	assert.ElementsMatch(t, []string{"c1/user->CEO", "c1/CEO->CTO"}, ids)
	assert.Equal(t, 2, rows[0].Messages)

	out, _, err = execute(t, "", append([]string{"chats", "list"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "c1/user->CEO")

	out, _, err = execute(t, "", append([]string{"chats", "show", "c1/user->CEO"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[human]\nBuild a CRM\n")
	assert.Contains(t, out, "[ai]\nOn it\n")

	out, _, err = execute(t, "", append([]string{"chats", "delete", "c1/user->CEO"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "deleted c1/user->CEO\n", out)

	_, _, err = execute(t, "", append([]string{"chats", "show", "c1/user->CEO"}, flags...)...)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, _, err = execute(t, "", append([]string{"chats", "delete", "c1/user->CEO"}, flags...)...)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	out, _, err = execute(t, "", append([]string{"chats", "cleanup", "--older-than", "1ns", "--all-tenants"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "deleted 2 chats\n", out)

	out, _, err = execute(t, "", "chats", "list", "-o", "json", "--store", "bolt", "--data-dir", dir, "--tenant", "other")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestStore_Unsupported(t *testing.T) {
	_, _, err := execute(t, "", "chats", "list", "--store", "mongo")
	assert.EqualError(t, err, "unsupported store: mongo")

	_, _, err = execute(t, "", "chats", "list", "--store", "redis", "--redis-url", "mysql://localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis URL")
}

// newLLMConfig returns the LLM config with a chat completions server
// that always replies with reply.
func newLLMConfig(t *testing.T, reply string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "1",
			"object": "chat.completion",
			"model":  "sonar",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)

	file := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
default_provider: local
providers:
  - name: local
    token: test-token
    default_model: sonar
    available_models:
      - sonar
    open_ai:
      api_type: PERPLEXITY
      base_url: `+srv.URL+`
`), 0o600))
	return file
}

func TestAsk(t *testing.T) {
	llmConfig := newLLMConfig(t, "We will build it.")
	dir := t.TempDir()
	transcript := filepath.Join(dir, "transcript.log")
	flags := []string{"--llm-config", llmConfig, "--store", "bolt", "--data-dir", dir, "--tenant", "acme"}

	out, stderr, err := execute(t, "", append([]string{"ask", "Build", "a", "CRM", "--transcript", transcript}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "We will build it.\n", out)
	assert.Contains(t, stderr, "chat: ")

	b, err := os.ReadFile(transcript)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Run Started")

	out, _, err = execute(t, "", append([]string{"ask", "Which database?", "--agent", "CTO", "--chat", "c9", "-o", "json"}, flags...)...)
	require.NoError(t, err)
	var res cli.AskResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, cli.AskResult{ChatID: "c9", Agent: "CTO", Reply: "We will build it."}, res)

	out, _, err = execute(t, "", append([]string{"chats", "show", "c9/user->CTO", "-o", "json"}, flags...)...)
	require.NoError(t, err)
	var info store.ChatInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "user -> CTO", info.Title)
	require.Len(t, info.Messages, 2)
	assert.Equal(t, "Which database?", info.Messages[0].GetContent())

	_, _, err = execute(t, "", append([]string{"ask", "hi", "--agent", "CFO"}, flags...)...)
	assert.True(t, errors.Is(err, agency.ErrAgentNotFound))

	_, _, err = execute(t, "", append([]string{"ask", " "}, flags...)...)
	assert.EqualError(t, err, "message is required")
}

func TestAsk_NoProvider(t *testing.T) {
	file := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(file, []byte("providers: []\n"), 0o600))

	_, _, err := execute(t, "", "ask", "hello", "--llm-config", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider is configured")
}

func TestRun(t *testing.T) {
	llmConfig := newLLMConfig(t, "Hello from the CEO.")

	out, _, err := execute(t, "Build a CRM\n\nquit\nnot sent\n", "run", "--llm-config", llmConfig, "--chat", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, agency.DefaultName+"\n")
	assert.Contains(t, out, "   Agent: CEO\n")
	assert.Contains(t, out, "   Chat:  r1\n")
	assert.Equal(t, 1, strings.Count(out, "Hello from the CEO."))

	// EOF ends the session
	out, _, err = execute(t, "", "run", "--llm-config", llmConfig)
	require.NoError(t, err)
	assert.NotContains(t, out, "Hello from the CEO.")
}
