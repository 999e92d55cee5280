package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DatabaseOperations wraps a database connection with typed operations.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates operations bound to the given connection.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// CreateMessage inserts a message and, when present, its fragment in one
// transaction. Missing IDs and timestamps are filled in.
func (ops *DatabaseOperations) CreateMessage(msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := ops.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO messages (id, project_id, content, role, type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ProjectID, msg.Content, msg.Role, msg.Type, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if msg.Fragment != nil {
		frag := msg.Fragment
		if frag.ID == "" {
			frag.ID = uuid.New().String()
		}
		frag.MessageID = msg.ID
		if frag.CreatedAt.IsZero() {
			frag.CreatedAt = msg.CreatedAt
		}

		filesJSON, err := marshalOrDefault(frag.Files, "{}")
		if err != nil {
			return fmt.Errorf("failed to encode fragment files: %w", err)
		}
		plotsJSON, err := marshalOrDefault(frag.Plots, "[]")
		if err != nil {
			return fmt.Errorf("failed to encode fragment plots: %w", err)
		}
		metricsJSON, err := marshalOrDefault(frag.Metrics, "{}")
		if err != nil {
			return fmt.Errorf("failed to encode fragment metrics: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO fragments (id, message_id, sandbox_url, title, files, model_path, report_path, data_path, app_path, api_path, plots, metrics, phase, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			frag.ID, frag.MessageID, frag.SandboxURL, frag.Title, filesJSON,
			frag.ModelPath, frag.ReportPath, frag.DataPath, frag.AppPath, frag.APIPath,
			plotsJSON, metricsJSON, frag.Phase, frag.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert fragment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// GetRecentMessages returns the last limit messages for a project in
// chronological order (oldest first).
func (ops *DatabaseOperations) GetRecentMessages(projectID string, limit int) ([]*Message, error) {
	rows, err := ops.db.Query(
		`SELECT id, project_id, content, role, type, created_at
		 FROM messages WHERE project_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.Content, &msg.Role, &msg.Type, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessageByID loads a message together with its fragment, if any.
func (ops *DatabaseOperations) GetMessageByID(id string) (*Message, error) {
	var msg Message
	err := ops.db.QueryRow(
		`SELECT id, project_id, content, role, type, created_at FROM messages WHERE id = ?`, id,
	).Scan(&msg.ID, &msg.ProjectID, &msg.Content, &msg.Role, &msg.Type, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}

	frag, err := ops.getFragmentByMessageID(id)
	if err != nil {
		return nil, err
	}
	msg.Fragment = frag
	return &msg, nil
}

func (ops *DatabaseOperations) getFragmentByMessageID(messageID string) (*Fragment, error) {
	var frag Fragment
	var filesJSON, plotsJSON, metricsJSON string
	err := ops.db.QueryRow(
		`SELECT id, message_id, sandbox_url, title, files, model_path, report_path, data_path, app_path, api_path, plots, metrics, phase, created_at
		 FROM fragments WHERE message_id = ?`, messageID,
	).Scan(&frag.ID, &frag.MessageID, &frag.SandboxURL, &frag.Title, &filesJSON,
		&frag.ModelPath, &frag.ReportPath, &frag.DataPath, &frag.AppPath, &frag.APIPath,
		&plotsJSON, &metricsJSON, &frag.Phase, &frag.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Absent fragment is a valid state
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fragment: %w", err)
	}

	if err := json.Unmarshal([]byte(filesJSON), &frag.Files); err != nil {
		return nil, fmt.Errorf("failed to decode fragment files: %w", err)
	}
	if err := json.Unmarshal([]byte(plotsJSON), &frag.Plots); err != nil {
		return nil, fmt.Errorf("failed to decode fragment plots: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &frag.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode fragment metrics: %w", err)
	}
	return &frag, nil
}

// GetStepResult returns the memoized result for a durable step, if present.
func (ops *DatabaseOperations) GetStepResult(runID, stepID string) (string, bool, error) {
	var result string
	err := ops.db.QueryRow(
		`SELECT result FROM steps WHERE run_id = ? AND step_id = ?`, runID, stepID,
	).Scan(&result)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query step result: %w", err)
	}
	return result, true, nil
}

// PutStepResult records a durable step result. The first recorded result
// wins; replays never overwrite it.
func (ops *DatabaseOperations) PutStepResult(runID, stepID, result string) error {
	_, err := ops.db.Exec(
		`INSERT INTO steps (run_id, step_id, result, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, step_id) DO NOTHING`,
		runID, stepID, result, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}
	return nil
}

func marshalOrDefault(v any, def string) (string, error) {
	if v == nil {
		return def, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
