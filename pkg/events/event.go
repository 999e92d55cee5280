// Package events receives task events over HTTP and feeds them to a bounded
// pool of run workers.
package events

import (
	"encoding/base64"
	"fmt"

	"mlforge/pkg/workflow"
)

// EventRun is the event name that triggers a task run.
const EventRun = "code-agent/run"

// FileData is an optional dataset attached to a run event. Content is
// base64-encoded file bytes.
type FileData struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// EventData is the payload of a run event.
type EventData struct {
	Value     string    `json:"value"`
	ProjectID string    `json:"projectId"`
	Model     string    `json:"model,omitempty"`
	FileData  *FileData `json:"fileData,omitempty"`
}

// Event is one task event. ID keys the durable step log for the run, so a
// re-delivered event with the same ID resumes instead of starting over.
type Event struct {
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name"`
	Data EventData `json:"data"`
}

// Validate checks the fields required to start a run.
func (e *Event) Validate() error {
	if e.Name != EventRun {
		return fmt.Errorf("unknown event name: %q", e.Name)
	}
	if e.Data.Value == "" {
		return fmt.Errorf("event data.value is required")
	}
	if e.Data.ProjectID == "" {
		return fmt.Errorf("event data.projectId is required")
	}
	return nil
}

// runInput converts the event into driver input. File content that is not
// valid base64 is passed through as-is.
func (e *Event) runInput() workflow.RunInput {
	in := workflow.RunInput{
		RunID:     e.ID,
		ProjectID: e.Data.ProjectID,
		Prompt:    e.Data.Value,
	}
	if f := e.Data.FileData; f != nil && f.Name != "" {
		content := f.Content
		if decoded, err := base64.StdEncoding.DecodeString(f.Content); err == nil {
			content = string(decoded)
		}
		in.Upload = &workflow.UploadFile{
			Name:     f.Name,
			Content:  content,
			MimeType: f.MimeType,
		}
	}
	return in
}
