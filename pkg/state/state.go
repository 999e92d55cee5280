// Package state holds the per-run mutable context threaded through every
// agent turn and tool call.
package state

import (
	"strings"
	"sync"

	"mlforge/pkg/logx"
)

// Phase is the current stage of a run's state machine.
type Phase string

const (
	PhaseOrchestrating Phase = "orchestrating"
	PhaseEngineering   Phase = "engineering"
	PhaseReporting     Phase = "reporting"
	PhaseDone          Phase = "done"
)

// Order gives phases their pipeline position. A run's visited phases are
// non-decreasing in this order.
func (p Phase) Order() int {
	switch p {
	case PhaseOrchestrating:
		return 0
	case PhaseEngineering:
		return 1
	case PhaseReporting:
		return 2
	case PhaseDone:
		return 3
	default:
		return -1
	}
}

// Artifacts points into the files map, classified by role.
type Artifacts struct {
	ModelPath  string   `json:"modelPath,omitempty"`
	ReportPath string   `json:"reportPath,omitempty"`
	DataPath   string   `json:"dataPath,omitempty"`
	AppPath    string   `json:"appPath,omitempty"`
	APIPath    string   `json:"apiPath,omitempty"`
	Plots      []string `json:"plots,omitempty"`
}

// HistoryMessage is one prior conversation turn loaded from the store.
type HistoryMessage struct {
	Role    string
	Content string
}

// SharedState is owned by one agent turn at a time. All access goes through
// mutex-guarded methods; concurrent runs get independent instances.
type SharedState struct {
	mu sync.Mutex

	phase              Phase
	phaseHistory       []Phase
	plan               string
	files              map[string]string
	artifacts          Artifacts
	metrics            map[string]any
	terminalOutput     strings.Builder
	summary            string
	needsClarification bool

	logger *logx.Logger
}

// New creates a fresh SharedState in the orchestrating phase.
func New(runID string) *SharedState {
	return &SharedState{
		phase:        PhaseOrchestrating,
		phaseHistory: []Phase{PhaseOrchestrating},
		files:        make(map[string]string),
		metrics:      make(map[string]any),
		logger:       logx.NewLogger("state:" + runID),
	}
}

// NewAt creates a SharedState starting in the given phase. Used by the
// code-generation pipeline, which skips orchestration.
func NewAt(runID string, phase Phase) *SharedState {
	s := New(runID)
	s.phase = phase
	s.phaseHistory = []Phase{phase}
	return s
}

func (s *SharedState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase transitions the run to a new phase.
func (s *SharedState) SetPhase(next Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next == s.phase {
		return
	}
	s.logger.Debug("🔄 phase transition: %s → %s", s.phase, next)
	s.phase = next
	s.phaseHistory = append(s.phaseHistory, next)
}

// PhaseHistory returns every phase visited, in order.
func (s *SharedState) PhaseHistory() []Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Phase, len(s.phaseHistory))
	copy(out, s.phaseHistory)
	return out
}

func (s *SharedState) Plan() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

func (s *SharedState) SetPlan(plan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
}

// SetFile records a written file. Last write wins per path; entries are
// never removed within a run.
func (s *SharedState) SetFile(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	classifyArtifact(&s.artifacts, path)
}

// Files returns a copy of the files map.
func (s *SharedState) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

func (s *SharedState) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// MergeMetrics folds parsed metric values into the run's metrics map.
// Overlapping keys take the later value; nothing is ever removed.
func (s *SharedState) MergeMetrics(metrics map[string]any) {
	if len(metrics) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range metrics {
		s.metrics[k] = v
	}
}

// Metrics returns a copy of the metrics map.
func (s *SharedState) Metrics() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out
}

// AppendTerminalOutput accumulates tool command output. Append-only.
func (s *SharedState) AppendTerminalOutput(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminalOutput.WriteString(output)
	s.terminalOutput.WriteString("\n")
}

func (s *SharedState) TerminalOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminalOutput.String()
}

func (s *SharedState) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

func (s *SharedState) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

func (s *SharedState) NeedsClarification() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsClarification
}

func (s *SharedState) SetNeedsClarification(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsClarification = v
}

// ArtifactsSnapshot returns a copy of the current artifact pointers.
func (s *SharedState) ArtifactsSnapshot() Artifacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.artifacts
	out.Plots = append([]string(nil), s.artifacts.Plots...)
	return out
}

// IsSuccess applies the run's data-driven success predicate: a non-empty
// summary and at least one written file.
func (s *SharedState) IsSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary != "" && len(s.files) > 0
}
