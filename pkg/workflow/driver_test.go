package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlforge/pkg/config"
	"mlforge/pkg/llm"
	"mlforge/pkg/metrics"
	"mlforge/pkg/persistence"
	"mlforge/pkg/sandbox"
)

// scriptedClient replays canned completions in order. A response at an index
// present in errs fails instead.
type scriptedClient struct {
	mu        sync.Mutex
	responses []llm.CompletionResponse
	errs      map[int]error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	if err, ok := c.errs[idx]; ok {
		return llm.CompletionResponse{}, err
	}
	if idx >= len(c.responses) {
		return llm.CompletionResponse{Content: "done"}, nil
	}
	return c.responses[idx], nil
}

func (c *scriptedClient) GetModelName() string { return "test-model" }

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingSandbox records every provisioning and command invocation so tests
// can prove that replayed steps do not repeat side effects.
type countingSandbox struct {
	mu      sync.Mutex
	creates int
	runs    []string
	writes  map[string]string
}

func newCountingSandbox() *countingSandbox {
	return &countingSandbox{writes: map[string]string{}}
}

func (s *countingSandbox) Create(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	return fmt.Sprintf("sbx-%d", s.creates), nil
}

func (s *countingSandbox) Run(_ context.Context, _, command string, _ *sandbox.OutputSinks) (sandbox.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, command)
	return sandbox.CommandResult{Stdout: "ok"}, nil
}

func (s *countingSandbox) WriteFile(_ context.Context, _, filePath, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[filePath] = content
	return nil
}

func (s *countingSandbox) ReadFile(_ context.Context, _, filePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content, ok := s.writes[filePath]; ok {
		return content, nil
	}
	return "", fmt.Errorf("no such file: %s", filePath)
}

func (s *countingSandbox) PublicURL(_ context.Context, sandboxID string, port int) (string, error) {
	return fmt.Sprintf("http://%s.local:%d", sandboxID, port), nil
}

func (s *countingSandbox) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func (s *countingSandbox) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func testConfig(pipeline string) config.Config {
	return config.Config{
		LLM:      config.LLMConfig{Provider: "openai", Model: "test-model", TopP: 0.9},
		Sandbox:  config.SandboxConfig{Image: "mlforge-sandbox", PreviewPort: 3000},
		Workflow: config.WorkflowConfig{HistoryLimit: 10, MaxIterations: 25, Pipeline: pipeline},
	}
}

func setupTestStore(t *testing.T) *persistence.DatabaseOperations {
	t.Helper()
	require.NoError(t, persistence.Reset())
	require.NoError(t, persistence.Initialize(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = persistence.Reset() })
	return persistence.Ops()
}

func newTestDriver(t *testing.T, client llm.Client, sb sandbox.Client, pipeline string) (*Driver, *persistence.DatabaseOperations) {
	t.Helper()
	store := setupTestStore(t)
	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	return NewDriver(testConfig(pipeline), client, sb, store, recorder), store
}

const testPlan = "<ml_plan>\n1. Load the dataset\n2. Train a classifier\n3. Report accuracy\n</ml_plan>"

func fullRunResponses() []llm.CompletionResponse {
	return []llm.CompletionResponse{
		{Content: testPlan},
		{ToolCalls: []llm.ToolCall{{
			ID:   "call-1",
			Name: "createOrUpdateFiles",
			Parameters: map[string]any{"files": []any{
				map[string]any{"path": "train.py", "content": "print('hi')"},
				map[string]any{"path": "outputs/model/model.pkl", "content": "binary"},
			}},
		}}},
		{Content: "Trained the model.\n\n<task_summary>\nTrained a classifier at 0.97 accuracy.\n</task_summary>"},
		{Content: "Report written."},
		{Content: "Iris Classifier"},
		{Content: "I trained a classifier on your dataset and saved the model."},
	}
}

func TestRunPersistsResultWithFragment(t *testing.T) {
	client := &scriptedClient{responses: fullRunResponses()}
	sb := newCountingSandbox()
	driver, store := newTestDriver(t, client, sb, "ml")

	res, err := driver.Run(context.Background(), RunInput{
		RunID:     "run-1",
		ProjectID: "proj-1",
		Prompt:    "classify iris flowers",
	})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.False(t, res.Clarification)

	msg, err := store.GetMessageByID(res.MessageID)
	require.NoError(t, err)
	assert.Equal(t, persistence.MessageTypeResult, msg.Type)
	assert.Equal(t, "I trained a classifier on your dataset and saved the model.", msg.Content)
	require.NotNil(t, msg.Fragment)
	assert.Equal(t, "Iris Classifier", msg.Fragment.Title)
	assert.Equal(t, "outputs/model/model.pkl", msg.Fragment.ModelPath)
	assert.Equal(t, "done", msg.Fragment.Phase)
	assert.Empty(t, msg.Fragment.SandboxURL)
	assert.Len(t, msg.Fragment.Files, 2)

	assert.Equal(t, 1, sb.createCount())
	assert.Contains(t, sb.runs[0], "mkdir -p outputs/model")
}

func TestRunReplaySkipsCompletedSteps(t *testing.T) {
	client := &scriptedClient{responses: append(fullRunResponses(), fullRunResponses()...)}
	sb := newCountingSandbox()
	driver, store := newTestDriver(t, client, sb, "ml")

	in := RunInput{RunID: "run-replay", ProjectID: "proj-1", Prompt: "classify iris flowers"}
	first, err := driver.Run(context.Background(), in)
	require.NoError(t, err)
	callsAfterFirst := client.callCount()
	runsAfterFirst := sb.runCount()

	second, err := driver.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, sb.createCount(), "replay must not provision a second sandbox")
	assert.Equal(t, runsAfterFirst, sb.runCount(), "replay must not rerun sandbox commands")
	// Only the cosmetic title/response generations repeat on replay.
	assert.Equal(t, callsAfterFirst+2, client.callCount())

	assert.Equal(t, first.MessageID, second.MessageID, "save-result is memoized")
	msgs, err := store.GetRecentMessages("proj-1", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRunWithoutFilesPersistsError(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{
		{Content: testPlan},
		{Content: "Nothing to execute.\n\n<task_summary>\nNo work performed.\n</task_summary>"},
		{Content: "Report written."},
		{Content: "Empty Task"},
		{Content: "Nothing was produced."},
	}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "ml")

	res, err := driver.Run(context.Background(), RunInput{
		RunID: "run-empty", ProjectID: "proj-1", Prompt: "do nothing",
	})
	require.NoError(t, err)
	assert.True(t, res.Failed)

	msg, err := store.GetMessageByID(res.MessageID)
	require.NoError(t, err)
	assert.Equal(t, persistence.MessageTypeError, msg.Type)
	assert.Contains(t, msg.Content, "Zixxy Error: ")
	assert.Nil(t, msg.Fragment)
}

func TestRunClarificationShortCircuits(t *testing.T) {
	const question = "Which column is the prediction target?"
	client := &scriptedClient{responses: []llm.CompletionResponse{{Content: question}}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "ml")

	res, err := driver.Run(context.Background(), RunInput{
		RunID: "run-q", ProjectID: "proj-1", Prompt: "analyze my data",
	})
	require.NoError(t, err)
	assert.True(t, res.Clarification)

	msg, err := store.GetMessageByID(res.MessageID)
	require.NoError(t, err)
	assert.Equal(t, persistence.MessageTypeResult, msg.Type)
	assert.Equal(t, question, msg.Content)
	assert.Nil(t, msg.Fragment)

	assert.Equal(t, 1, client.callCount(), "no engineer, title, or response calls on clarification")
}

func TestRunRateLimitErrorClassified(t *testing.T) {
	client := &scriptedClient{errs: map[int]error{
		0: errors.New("request failed with status 429: too many requests"),
	}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "ml")

	_, err := driver.Run(context.Background(), RunInput{
		RunID: "run-429", ProjectID: "proj-1", Prompt: "classify iris flowers",
	})
	require.Error(t, err)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "NVIDIA API rate limit exceeded. Try again later.", err.Error())

	msgs, derr := store.GetRecentMessages("proj-1", 10)
	require.NoError(t, derr)
	require.Len(t, msgs, 1)
	assert.Equal(t, persistence.MessageTypeError, msgs[0].Type)
	// The stored chat message always carries the failure prefix; the
	// returned error keeps the bare classified text.
	assert.Equal(t, "Zixxy failed: NVIDIA API rate limit exceeded. Try again later.", msgs[0].Content)
}

func TestRunInvalidKeyErrorClassified(t *testing.T) {
	client := &scriptedClient{errs: map[int]error{
		0: errors.New("status 401 unauthorized"),
	}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "ml")

	_, err := driver.Run(context.Background(), RunInput{
		RunID: "run-401", ProjectID: "proj-1", Prompt: "classify iris flowers",
	})
	require.Error(t, err)

	var credErr *InvalidCredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "Invalid NVIDIA API key.", err.Error())

	msgs, derr := store.GetRecentMessages("proj-1", 10)
	require.NoError(t, derr)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Zixxy failed: Invalid NVIDIA API key.", msgs[0].Content)
}

func TestRunGenericErrorPersistsSinglePrefix(t *testing.T) {
	client := &scriptedClient{errs: map[int]error{
		0: errors.New("connection reset by peer"),
	}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "ml")

	_, err := driver.Run(context.Background(), RunInput{
		RunID: "run-err", ProjectID: "proj-1", Prompt: "classify iris flowers",
	})
	require.Error(t, err)

	msgs, derr := store.GetRecentMessages("proj-1", 10)
	require.NoError(t, derr)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Zixxy failed: ")
	assert.NotContains(t, msgs[0].Content, "Zixxy failed: Zixxy failed:")
}

func TestRunCodegenFragmentCarriesPreviewURL(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:   "call-1",
			Name: "createOrUpdateFiles",
			Parameters: map[string]any{"files": []any{
				map[string]any{"path": "app.py", "content": "import streamlit"},
			}},
		}}},
		{Content: "Built the app.\n\n<task_summary>\nStreamlit app created.\n</task_summary>"},
		{Content: "Streamlit App"},
		{Content: "Your app is ready."},
	}}
	driver, store := newTestDriver(t, client, newCountingSandbox(), "codegen")

	res, err := driver.Run(context.Background(), RunInput{
		RunID: "run-app", ProjectID: "proj-2", Prompt: "build a dashboard",
	})
	require.NoError(t, err)
	assert.False(t, res.Failed)

	msg, err := store.GetMessageByID(res.MessageID)
	require.NoError(t, err)
	require.NotNil(t, msg.Fragment)
	assert.Equal(t, "http://sbx-1.local:3000", msg.Fragment.SandboxURL)
	assert.Equal(t, "app.py", msg.Fragment.AppPath)
}

func TestRunUploadAnnotatesPrompt(t *testing.T) {
	var captured []llm.CompletionRequest
	client := &capturingClient{inner: &scriptedClient{responses: fullRunResponses()}, requests: &captured}
	sb := newCountingSandbox()
	driver, _ := newTestDriver(t, client, sb, "ml")

	_, err := driver.Run(context.Background(), RunInput{
		RunID:     "run-upload",
		ProjectID: "proj-1",
		Prompt:    "train on my data",
		Upload:    &UploadFile{Name: "churn.csv", Content: "a,b\n1,2\n", MimeType: "text/csv"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a,b\n1,2\n", sb.writes["uploads/churn.csv"])
	require.NotEmpty(t, captured)
	prompt := captured[0].Messages[len(captured[0].Messages)-1].Content
	assert.Contains(t, prompt, "train on my data")
	assert.Contains(t, prompt, "available in the sandbox at: uploads/churn.csv")
	assert.Contains(t, prompt, "pd.read_csv('uploads/churn.csv')")
}

func TestEnhanceFallsBackToOriginalPrompt(t *testing.T) {
	client := &scriptedClient{responses: []llm.CompletionResponse{{Content: "   "}}}
	driver, _ := newTestDriver(t, client, newCountingSandbox(), "ml")

	out, err := driver.Enhance(context.Background(), "train something")
	require.NoError(t, err)
	assert.Equal(t, "train something", out)
}

// capturingClient records every request while delegating to an inner client.
type capturingClient struct {
	inner    llm.Client
	mu       sync.Mutex
	requests *[]llm.CompletionRequest
}

func (c *capturingClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.mu.Lock()
	*c.requests = append(*c.requests, req)
	c.mu.Unlock()
	return c.inner.Complete(ctx, req)
}

func (c *capturingClient) GetModelName() string { return c.inner.GetModelName() }
