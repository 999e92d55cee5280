package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitionsAreRecorded(t *testing.T) {
	s := New("run-1")
	assert.Equal(t, PhaseOrchestrating, s.Phase())

	s.SetPhase(PhaseEngineering)
	s.SetPhase(PhaseEngineering) // no-op, not recorded twice
	s.SetPhase(PhaseReporting)
	s.SetPhase(PhaseDone)

	history := s.PhaseHistory()
	require.Equal(t, []Phase{PhaseOrchestrating, PhaseEngineering, PhaseReporting, PhaseDone}, history)

	// Visited phases never move backwards in pipeline order.
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i].Order(), history[i-1].Order())
	}
}

func TestNewAtStartsInGivenPhase(t *testing.T) {
	s := NewAt("run-2", PhaseEngineering)
	assert.Equal(t, PhaseEngineering, s.Phase())
	assert.Equal(t, []Phase{PhaseEngineering}, s.PhaseHistory())
}

func TestFilesLastWriteWins(t *testing.T) {
	s := New("run-3")
	s.SetFile("train.py", "v1")
	s.SetFile("train.py", "v2")
	s.SetFile("outputs/model/model.pkl", "binary")

	files := s.Files()
	assert.Equal(t, "v2", files["train.py"])
	assert.Equal(t, 2, s.FileCount())
}

func TestMergeMetricsLaterWins(t *testing.T) {
	s := New("run-4")
	s.MergeMetrics(map[string]any{"accuracy": 0.91, "f1": 0.88})
	s.MergeMetrics(map[string]any{"accuracy": 0.95})

	m := s.Metrics()
	assert.Equal(t, 0.95, m["accuracy"])
	assert.Equal(t, 0.88, m["f1"])
}

func TestTerminalOutputAppendOnly(t *testing.T) {
	s := New("run-5")
	s.AppendTerminalOutput("first")
	s.AppendTerminalOutput("second")
	assert.Equal(t, "first\nsecond\n", s.TerminalOutput())
}

func TestIsSuccessRequiresSummaryAndFiles(t *testing.T) {
	s := New("run-6")
	assert.False(t, s.IsSuccess())

	s.SetSummary("<task_summary>Trained a model.</task_summary>")
	assert.False(t, s.IsSuccess(), "summary alone is not success")

	s.SetFile("train.py", "code")
	assert.True(t, s.IsSuccess())
}

func TestConcurrentAccess(t *testing.T) {
	s := New("run-7")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendTerminalOutput("line")
			s.MergeMetrics(map[string]any{"k": 1})
			s.SetFile("f.py", "x")
			_ = s.Files()
			_ = s.Metrics()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.FileCount())
}

func TestExtractPlan(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"present", "Here is the plan.\n<ml_plan>\n1. Load data\n2. Train\n</ml_plan>\nDone.", "1. Load data\n2. Train"},
		{"absent", "I need more information about your dataset.", ""},
		{"empty body", "<ml_plan>  </ml_plan>", ""},
		{"multiline inner tags kept", "<ml_plan>use <b>gradient boosting</b></ml_plan>", "use <b>gradient boosting</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPlan(tt.text))
		})
	}
}

func TestHasTaskSummary(t *testing.T) {
	assert.True(t, HasTaskSummary("All done.\n<task_summary>Trained and saved model.</task_summary>"))
	assert.False(t, HasTaskSummary("Still working on feature engineering."))
}

func TestExtractMetrics(t *testing.T) {
	out := ExtractMetrics(`Training complete.
METRICS_JSON: {"accuracy": 0.94, "rmse": 1.2}
next step`)
	require.NotNil(t, out)
	assert.Equal(t, 0.94, out["accuracy"])
	assert.Equal(t, 1.2, out["rmse"])

	assert.Nil(t, ExtractMetrics("no metrics here"))
	assert.Nil(t, ExtractMetrics(`METRICS_JSON: {broken json}`))
}

func TestArtifactClassification(t *testing.T) {
	s := New("run-8")
	s.SetFile("outputs/model/model.pkl", "")
	s.SetFile("outputs/plots/confusion_matrix.png", "")
	s.SetFile("outputs/plots/roc.png", "")
	s.SetFile("outputs/reports/report.md", "")
	s.SetFile("app.py", "")
	s.SetFile("api.py", "")
	s.SetFile("outputs/data/clean.csv", "")

	a := s.ArtifactsSnapshot()
	assert.Equal(t, "outputs/model/model.pkl", a.ModelPath)
	assert.Equal(t, []string{"outputs/plots/confusion_matrix.png", "outputs/plots/roc.png"}, a.Plots)
	assert.Equal(t, "outputs/reports/report.md", a.ReportPath)
	assert.Equal(t, "app.py", a.AppPath)
	assert.Equal(t, "api.py", a.APIPath)
	assert.Equal(t, "outputs/data/clean.csv", a.DataPath)
}

func TestArtifactRulesAllApply(t *testing.T) {
	// A CSV written under the plots directory hits both the plot rule and
	// the data rule.
	s := New("run-9")
	s.SetFile("outputs/plots/summary.csv", "")

	a := s.ArtifactsSnapshot()
	assert.Equal(t, []string{"outputs/plots/summary.csv"}, a.Plots)
	assert.Equal(t, "outputs/plots/summary.csv", a.DataPath)
}

func TestArtifactSingularSlotsLastWriteWins(t *testing.T) {
	s := New("run-10")
	s.SetFile("outputs/model/v1.pkl", "")
	s.SetFile("outputs/model/v2.pt", "")

	assert.Equal(t, "outputs/model/v2.pt", s.ArtifactsSnapshot().ModelPath)
}
