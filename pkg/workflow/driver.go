package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mlforge/pkg/agent"
	"mlforge/pkg/config"
	"mlforge/pkg/llm"
	"mlforge/pkg/logx"
	"mlforge/pkg/metrics"
	"mlforge/pkg/network"
	"mlforge/pkg/persistence"
	"mlforge/pkg/prompts"
	"mlforge/pkg/sandbox"
	"mlforge/pkg/state"
	"mlforge/pkg/tools"
)

const (
	titleTemperature    = 0.3
	responseTemperature = 0.5
	enhanceTemperature  = 0.5
)

// UploadFile is an optional dataset attached to a run event. Content is the
// raw file bytes as delivered by the intake handler.
type UploadFile struct {
	Name     string
	Content  string
	MimeType string
}

// RunInput identifies one task run. RunID keys the durable step log, so
// re-delivering an event with the same RunID replays completed steps instead
// of repeating their side effects.
type RunInput struct {
	RunID     string
	ProjectID string
	Prompt    string
	Upload    *UploadFile
}

// RunResult summarizes a finished run.
type RunResult struct {
	MessageID     string
	Clarification bool
	Failed        bool
}

// networkOutcome is the serializable snapshot of shared state after the
// agent network stops, stored as the run-agent-network step result.
type networkOutcome struct {
	Summary            string            `json:"summary"`
	Plan               string            `json:"plan"`
	Files              map[string]string `json:"files"`
	Artifacts          state.Artifacts   `json:"artifacts"`
	Metrics            map[string]any    `json:"metrics"`
	Phase              string            `json:"phase"`
	NeedsClarification bool              `json:"needs_clarification"`
}

// Driver executes task runs end to end: sandbox setup, agent network,
// title/response generation, and result persistence.
type Driver struct {
	cfg      config.Config
	client   llm.Client
	sandbox  sandbox.Client
	store    *persistence.DatabaseOperations
	recorder *metrics.Recorder
	logger   *logx.Logger
}

func NewDriver(cfg config.Config, client llm.Client, sb sandbox.Client, store *persistence.DatabaseOperations, recorder *metrics.Recorder) *Driver {
	return &Driver{
		cfg:      cfg,
		client:   client,
		sandbox:  sb,
		store:    store,
		recorder: recorder,
		logger:   logx.NewLogger("workflow"),
	}
}

// Run drives one task. On failure it classifies the error, persists an
// ERROR message with the user-facing text, and returns the classified error.
func (d *Driver) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	start := time.Now()
	d.logger.Info("🔄 run %s starting (project %s, pipeline %s)", in.RunID, in.ProjectID, d.cfg.Workflow.Pipeline)

	res, err := d.run(ctx, in)
	if err != nil {
		classified := classifyRunError(err)
		d.logger.Error("❌ run %s failed: %v", in.RunID, classified)
		d.recorder.ObserveRun(d.cfg.Workflow.Pipeline, "failed", time.Since(start))
		if saveErr := d.store.CreateMessage(&persistence.Message{
			ProjectID: in.ProjectID,
			Content:   failureMessage(classified),
			Role:      persistence.MessageRoleAssistant,
			Type:      persistence.MessageTypeError,
		}); saveErr != nil {
			d.logger.Error("❌ run %s: persist failure message: %v", in.RunID, saveErr)
		}
		return nil, classified
	}

	outcome := "success"
	switch {
	case res.Clarification:
		outcome = "clarification"
	case res.Failed:
		outcome = "error"
	}
	d.recorder.ObserveRun(d.cfg.Workflow.Pipeline, outcome, time.Since(start))
	d.logger.Info("✅ run %s finished (%s) in %s", in.RunID, outcome, time.Since(start).Round(time.Millisecond))
	return res, nil
}

//nolint:cyclop // Sequential step pipeline, complexity acceptable
func (d *Driver) run(ctx context.Context, in RunInput) (*RunResult, error) {
	sandboxID, err := Do(ctx, d.store, in.RunID, "get-sandbox-id", func(ctx context.Context) (string, error) {
		return d.sandbox.Create(ctx, d.cfg.Sandbox.Image)
	})
	if err != nil {
		return nil, fmt.Errorf("provision sandbox: %w", err)
	}

	if _, err := Do(ctx, d.store, in.RunID, "init-sandbox-dirs", func(ctx context.Context) (bool, error) {
		const mkdirs = "mkdir -p outputs/model outputs/plots outputs/data outputs/reports uploads"
		if _, rerr := d.sandbox.Run(ctx, sandboxID, mkdirs, nil); rerr != nil {
			return false, rerr
		}
		return true, nil
	}); err != nil {
		return nil, fmt.Errorf("init sandbox dirs: %w", err)
	}

	uploadPath, err := Do(ctx, d.store, in.RunID, "handle-file-upload", func(ctx context.Context) (string, error) {
		if in.Upload == nil {
			return "", nil
		}
		path := "uploads/" + in.Upload.Name
		if werr := d.sandbox.WriteFile(ctx, sandboxID, path, in.Upload.Content); werr != nil {
			// Upload failure is not fatal, the run proceeds without the file.
			d.logger.Warn("⚠️ run %s: file upload to sandbox failed: %v", in.RunID, werr)
			return "", nil
		}
		return path, nil
	})
	if err != nil {
		return nil, err
	}

	history, err := Do(ctx, d.store, in.RunID, "get-previous-messages", func(ctx context.Context) ([]state.HistoryMessage, error) {
		msgs, herr := d.store.GetRecentMessages(in.ProjectID, d.cfg.Workflow.HistoryLimit)
		if herr != nil {
			return nil, herr
		}
		out := make([]state.HistoryMessage, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, state.HistoryMessage{Role: m.Role, Content: m.Content})
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	prompt := in.Prompt
	if uploadPath != "" {
		prompt = fmt.Sprintf(
			"%s\n\nThe user has uploaded a data file. It is available in the sandbox at: %s\nUse this file as your dataset. Load it with pandas: pd.read_csv('%s')",
			in.Prompt, uploadPath, uploadPath,
		)
	}

	out, err := Do(ctx, d.store, in.RunID, "run-agent-network", func(ctx context.Context) (networkOutcome, error) {
		var st *state.SharedState
		if d.cfg.Workflow.Pipeline == "codegen" {
			st = state.NewAt(in.RunID, state.PhaseEngineering)
		} else {
			st = state.New(in.RunID)
		}

		provider := tools.NewProvider(tools.AgentContext{
			Sandbox:   d.sandbox,
			SandboxID: sandboxID,
			State:     st,
			WorkDir:   d.cfg.Sandbox.WorkDir,
		}, []string{tools.ToolTerminal, tools.ToolCreateOrUpdateFiles, tools.ToolReadFiles, tools.ToolListOutputs})
		runner := agent.NewRunner(d.client, provider, d.recorder)

		var net *network.Network
		if d.cfg.Workflow.Pipeline == "codegen" {
			net = network.CodegenPipeline(runner, d.cfg.Workflow.MaxIterations)
		} else {
			net = network.MLPipeline(runner, d.cfg.Workflow.MaxIterations)
		}

		if rerr := net.Run(ctx, agent.NewConversation(history, prompt), st); rerr != nil {
			return networkOutcome{}, rerr
		}
		return networkOutcome{
			Summary:            st.Summary(),
			Plan:               st.Plan(),
			Files:              st.Files(),
			Artifacts:          st.ArtifactsSnapshot(),
			Metrics:            st.Metrics(),
			Phase:              string(st.Phase()),
			NeedsClarification: st.NeedsClarification(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// A clarifying question goes back to the user as a plain RESULT
	// message with no fragment.
	if out.NeedsClarification {
		msgID, serr := Do(ctx, d.store, in.RunID, "save-clarification", func(_ context.Context) (string, error) {
			msg := &persistence.Message{
				ProjectID: in.ProjectID,
				Content:   out.Summary,
				Role:      persistence.MessageRoleAssistant,
				Type:      persistence.MessageTypeResult,
			}
			if cerr := d.store.CreateMessage(msg); cerr != nil {
				return "", cerr
			}
			return msg.ID, nil
		})
		if serr != nil {
			return nil, fmt.Errorf("save clarification: %w", serr)
		}
		return &RunResult{MessageID: msgID, Clarification: true}, nil
	}

	title := d.generate(ctx, prompts.FragmentTitlePrompt, out.Summary, titleTemperature, "ML Task")
	fallback := out.Summary
	if fallback == "" {
		fallback = "ML task completed."
	}
	response := d.generate(ctx, prompts.ResponsePrompt, out.Summary, responseTemperature, fallback)

	failed := out.Summary == "" || len(out.Files) == 0

	msgID, err := Do(ctx, d.store, in.RunID, "save-result", func(ctx context.Context) (string, error) {
		if failed {
			summary := out.Summary
			if summary == "" {
				summary = "Unknown error"
			}
			msg := &persistence.Message{
				ProjectID: in.ProjectID,
				Content:   "Zixxy Error: " + summary,
				Role:      persistence.MessageRoleAssistant,
				Type:      persistence.MessageTypeError,
			}
			if cerr := d.store.CreateMessage(msg); cerr != nil {
				return "", cerr
			}
			return msg.ID, nil
		}

		sandboxURL := ""
		if d.cfg.Workflow.Pipeline == "codegen" {
			u, uerr := d.sandbox.PublicURL(ctx, sandboxID, d.cfg.Sandbox.PreviewPort)
			if uerr != nil {
				d.logger.Warn("⚠️ run %s: resolve preview url: %v", in.RunID, uerr)
			} else {
				sandboxURL = u
			}
		}
		msg := &persistence.Message{
			ProjectID: in.ProjectID,
			Content:   response,
			Role:      persistence.MessageRoleAssistant,
			Type:      persistence.MessageTypeResult,
			Fragment: &persistence.Fragment{
				SandboxURL: sandboxURL,
				Title:      title,
				Files:      out.Files,
				ModelPath:  out.Artifacts.ModelPath,
				ReportPath: out.Artifacts.ReportPath,
				DataPath:   out.Artifacts.DataPath,
				AppPath:    out.Artifacts.AppPath,
				APIPath:    out.Artifacts.APIPath,
				Plots:      out.Artifacts.Plots,
				Metrics:    out.Metrics,
				Phase:      "done",
			},
		}
		if cerr := d.store.CreateMessage(msg); cerr != nil {
			return "", cerr
		}
		return msg.ID, nil
	})
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	return &RunResult{MessageID: msgID, Failed: failed}, nil
}

// generate runs a single-turn cosmetic generation (title, user-facing
// response). Any failure falls back to a static string so a finished run is
// never lost to a cosmetic call.
func (d *Driver) generate(ctx context.Context, system, input string, temperature float64, fallback string) string {
	resp, err := d.client.Complete(ctx, llm.NewSystemRequest(system, input, temperature, d.cfg.LLM.TopP))
	if err != nil {
		d.logger.Warn("⚠️ cosmetic generation failed: %v", err)
		return fallback
	}
	if text := strings.TrimSpace(resp.Content); text != "" {
		return text
	}
	return fallback
}

// Enhance rewrites a terse user prompt into a detailed ML task description.
// Returns the original prompt unchanged when the model produces nothing.
func (d *Driver) Enhance(ctx context.Context, prompt string) (string, error) {
	resp, err := d.client.Complete(ctx, llm.NewSystemRequest(prompts.EnhancePrompt, prompt, enhanceTemperature, d.cfg.LLM.TopP))
	if err != nil {
		return "", fmt.Errorf("enhance prompt: %w", err)
	}
	if text := strings.TrimSpace(resp.Content); text != "" {
		return text, nil
	}
	return prompt, nil
}
