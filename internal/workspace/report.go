package workspace

// Status is the terminal state of a materialization
type Status string

const (
	StatusComplete       Status = "complete"
	StatusPartialFailure Status = "partial_failure"
	StatusAborted        Status = "aborted"
)

// SkippedFile names a file that could not be written
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report describes what a Materialize call did. It is not modified after
// Materialize returns.
type Report struct {
	Root        string        `json:"root"`
	Status      Status        `json:"status"`
	DirsCreated int           `json:"dirs_created"`
	Written     []string      `json:"written"`
	Skipped     []SkippedFile `json:"skipped,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`

	err error
}

// Err returns the root-level failure of an aborted run
func (r Report) Err() error {
	return r.err
}

// Succeeded reports whether the project exists on disk, possibly with skipped files
func (r Report) Succeeded() bool {
	return r.Status == StatusComplete || r.Status == StatusPartialFailure
}

func (r *Report) skip(path, reason string) {
	r.Skipped = append(r.Skipped, SkippedFile{Path: path, Reason: reason})
}

func aborted(root string, err error) Report {
	return Report{Root: root, Status: StatusAborted, err: err}
}
