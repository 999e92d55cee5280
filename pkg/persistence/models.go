package persistence

import "time"

// Message role constants.
const (
	MessageRoleUser      = "USER"
	MessageRoleAssistant = "ASSISTANT"
)

// Message type constants.
const (
	MessageTypeResult = "RESULT"
	MessageTypeError  = "ERROR"
)

// Message is one conversation turn in a project: either a user request or
// an assistant outcome. Error outcomes use type ERROR and carry no fragment.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type Message struct {
	ID        string
	ProjectID string
	Content   string
	Role      string
	Type      string
	CreatedAt time.Time

	// Fragment is the structured result attached to a successful
	// assistant message, nil otherwise.
	Fragment *Fragment
}

// Fragment is the structured artifact record attached to a RESULT message.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type Fragment struct {
	ID         string
	MessageID  string
	SandboxURL string
	Title      string
	Files      map[string]string
	ModelPath  string
	ReportPath string
	DataPath   string
	AppPath    string
	APIPath    string
	Plots      []string
	Metrics    map[string]any
	Phase      string
	CreatedAt  time.Time
}

// StepResult is a memoized durable-step outcome keyed by (run, step).
type StepResult struct {
	RunID     string
	StepID    string
	Result    string
	CreatedAt time.Time
}
