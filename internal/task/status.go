package task

import "time"

// Status represents the status of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusGenerating Status = "generating"
	StatusParsing    Status = "parsing"
	StatusWriting    Status = "writing_files"
	StatusCommitting Status = "committing"
	StatusPushing    Status = "pushing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// Task represents a project generation task
type Task struct {
	ID          string    `json:"task_id"`
	Description string    `json:"description"`
	Name        string    `json:"name,omitempty"`
	Language    string    `json:"language,omitempty"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	Root        string    `json:"root,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Skipped     []string  `json:"skipped,omitempty"`
	RepoURL     string    `json:"repo_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Outcome is what a finished run reports back to its task
type Outcome struct {
	Root    string
	Files   []string
	Skipped []string
	RepoURL string
}

// UpdateStatus updates the task status and message
func (t *Task) UpdateStatus(status Status, message string) {
	t.Status = status
	t.Message = message
	t.UpdatedAt = time.Now()
}

// SetError sets the task error and status to failed
func (t *Task) SetError(err error) {
	t.Status = StatusFailed
	t.Error = err.Error()
	t.Message = "Task failed"
	t.UpdatedAt = time.Now()
}

// Complete records a finished run
func (t *Task) Complete(o Outcome) {
	t.Root = o.Root
	t.Files = append([]string(nil), o.Files...)
	t.Skipped = append([]string(nil), o.Skipped...)
	t.RepoURL = o.RepoURL
	if len(o.Skipped) > 0 {
		t.UpdateStatus(StatusPartial, "Project generated with skipped files")
		return
	}
	t.UpdateStatus(StatusCompleted, "Project generated successfully!")
}

// IsTerminal returns true if the task is in a terminal state
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusPartial || t.Status == StatusFailed
}

// clone returns a copy safe to hand out while the manager keeps mutating t
func (t *Task) clone() Task {
	c := *t
	c.Files = append([]string(nil), t.Files...)
	c.Skipped = append([]string(nil), t.Skipped...)
	return c
}
