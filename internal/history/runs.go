package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/promptsplit/pkg/models"
)

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run ID prefix is ambiguous")
)

// RunStatus represents the outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded decomposition.
type Run struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	TaskPrompt   string         `json:"task_prompt"`
	InputVars    []string       `json:"input_vars"`
	Backend      string         `json:"backend"`
	Model        string         `json:"model"`
	Status       RunStatus      `json:"status"`
	Error        string         `json:"error,omitempty"`
	InputTokens  int64          `json:"input_tokens"`
	OutputTokens int64          `json:"output_tokens"`
	Calls        int            `json:"calls"`
	Duration     time.Duration  `json:"duration"`
	Result       *models.Result `json:"result,omitempty"`
}

// NewRun creates a run record with a fresh ID and the current time.
func NewRun(taskPrompt string, inputVars []string, backend, model string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now(),
		TaskPrompt: taskPrompt,
		InputVars:  inputVars,
		Backend:    backend,
		Model:      model,
	}
}

// ShortID returns the first eight characters of the run ID.
func (r *Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}

// Succeed records a successful result.
func (r *Run) Succeed(result *models.Result) {
	r.Status = RunSucceeded
	r.Result = result
	r.Error = ""
}

// Fail records a failed run.
func (r *Run) Fail(err error) {
	r.Status = RunFailed
	r.Result = nil
	if err != nil {
		r.Error = err.Error()
	}
}

// SaveRun inserts or replaces a run.
func (db *DB) SaveRun(r *Run) error {
	vars := r.InputVars
	if vars == nil {
		vars = []string{}
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("marshal input vars: %w", err)
	}

	var result sql.NullString
	if r.Result != nil {
		data, err := json.Marshal(r.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err = db.exec(`
		INSERT OR REPLACE INTO runs (id, created_at, task_prompt, input_vars, backend, model, status, error,
			input_tokens, output_tokens, calls, duration_ms, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, formatTime(r.CreatedAt), r.TaskPrompt, string(varsJSON), r.Backend, r.Model, string(r.Status), r.Error,
		r.InputTokens, r.OutputTokens, r.Calls, r.Duration.Milliseconds(), result)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, task_prompt, input_vars, backend, model, status, error,
	input_tokens, output_tokens, calls, duration_ms, result`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var createdAt, varsJSON string
	var durationMS int64
	var result sql.NullString

	err := s.Scan(&r.ID, &createdAt, &r.TaskPrompt, &varsJSON, &r.Backend, &r.Model, &r.Status, &r.Error,
		&r.InputTokens, &r.OutputTokens, &r.Calls, &durationMS, &result)
	if err != nil {
		return nil, err
	}

	r.CreatedAt, _ = parseTime(createdAt)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(varsJSON), &r.InputVars); err != nil {
		return nil, fmt.Errorf("unmarshal input vars: %w", err)
	}
	if result.Valid {
		r.Result = &models.Result{}
		if err := json.Unmarshal([]byte(result.String), r.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &r, nil
}

// GetRun retrieves a run by its full ID or a unique ID prefix.
func (db *DB) GetRun(id string) (*Run, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	rows, err := db.query(`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 3`, id, id+"%")
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("get run: %w", err)
		}
		if r.ID == id {
			return r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// ListOptions filters ListRuns.
type ListOptions struct {
	// Limit caps the number of runs returned (0 = no limit).
	Limit int
	// Status keeps only runs with this status when set.
	Status RunStatus
}

// ListRuns lists runs, newest first.
func (db *DB) ListRuns(opts ListOptions) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if opts.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := db.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun deletes a run by its full ID.
func (db *DB) DeleteRun(id string) error {
	res, err := db.exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// PurgeOldRuns deletes runs older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	res, err := db.exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
