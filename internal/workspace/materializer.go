package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Jurkyy/project-pilot/internal/project"
)

var (
	// ErrRootExists is returned when the target root is non-empty and overwrite is off
	ErrRootExists = errors.New("target directory already exists and is not empty")
	// ErrRootNotDirectory is returned when the target root is a file
	ErrRootNotDirectory = errors.New("target path exists and is not a directory")
)

const (
	DefaultFileMode os.FileMode = 0o644
	DefaultDirMode  os.FileMode = 0o755
)

// Options controls how a Materializer writes
type Options struct {
	// Overwrite writes into an existing root in place
	Overwrite bool
	FileMode  os.FileMode
	DirMode   os.FileMode
}

// Materializer writes sanitized entries under a target root
type Materializer struct {
	opts   Options
	logger *slog.Logger

	writeFile func(root *os.Root, name string, data []byte, perm os.FileMode) error
	newID     func() string
}

// New creates a Materializer
func New(opts Options, logger *slog.Logger) *Materializer {
	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}
	if opts.DirMode == 0 {
		opts.DirMode = DefaultDirMode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		opts:      opts,
		logger:    logger,
		writeFile: writeRootFile,
		newID:     func() string { return uuid.New().String() },
	}
}

// Materialize writes entries under root. Entries must already be sanitized.
//
// Without Overwrite the tree is built in a sibling staging directory and
// renamed onto root once every write has been attempted, so root either does
// not exist or holds the finished tree.
func (m *Materializer) Materialize(entries []project.FileEntry, root string) Report {
	abs, err := filepath.Abs(root)
	if err != nil {
		return aborted(root, fmt.Errorf("resolve target directory: %w", err))
	}
	logger := m.logger.With("root", abs)

	exists, empty, err := inspectRoot(abs)
	if err != nil {
		return aborted(abs, err)
	}
	if exists && !empty && !m.opts.Overwrite {
		return aborted(abs, fmt.Errorf("%w: %s", ErrRootExists, abs))
	}

	if m.opts.Overwrite && exists {
		logger.Info("writing project in place", "files", len(entries))
		return m.writeTree(entries, abs, abs, logger)
	}

	parent := filepath.Dir(abs)
	createdParent := outermostMissing(parent)
	undo := func(staging string) {
		if staging != "" {
			_ = os.RemoveAll(staging)
		}
		if createdParent != "" {
			_ = os.RemoveAll(createdParent)
		}
	}

	if err := os.MkdirAll(parent, m.opts.DirMode); err != nil {
		undo("")
		return aborted(abs, fmt.Errorf("create parent directory: %w", err))
	}
	staging := filepath.Join(parent, "."+filepath.Base(abs)+".partial-"+m.newID())
	if err := os.Mkdir(staging, m.opts.DirMode); err != nil {
		undo("")
		return aborted(abs, fmt.Errorf("create staging directory: %w", err))
	}
	logger.Debug("staging project", "staging", staging, "files", len(entries))

	report := m.writeTree(entries, staging, abs, logger)
	if report.Status == StatusAborted {
		undo(staging)
		return report
	}

	if exists {
		// only an empty root gets here; rename cannot replace it everywhere
		if err := os.Remove(abs); err != nil {
			undo(staging)
			return aborted(abs, fmt.Errorf("replace empty target directory: %w", err))
		}
	}
	if err := os.Rename(staging, abs); err != nil {
		undo(staging)
		return aborted(abs, fmt.Errorf("move staged project into place: %w", err))
	}
	return report
}

// outermostMissing returns the outermost directory on the way to dir that
// does not exist yet, or "" when dir exists
func outermostMissing(dir string) string {
	missing := ""
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Lstat(d); !errors.Is(err, fs.ErrNotExist) {
			return missing
		}
		missing = d
		if filepath.Dir(d) == d {
			return missing
		}
	}
}

func (m *Materializer) writeTree(entries []project.FileEntry, dir, root string, logger *slog.Logger) Report {
	r, err := os.OpenRoot(dir)
	if err != nil {
		return aborted(root, fmt.Errorf("open target directory: %w", err))
	}
	defer r.Close()

	report := Report{Root: root}
	made := make(map[string]bool)

	for _, e := range entries {
		segs := e.Segments
		if len(segs) == 0 {
			segs = splitPath(e.Path)
		}
		if len(segs) == 0 {
			report.skip(e.Path, "empty path")
			continue
		}

		created, err := m.mkdirs(r, segs[:len(segs)-1], made)
		report.DirsCreated += created
		if err != nil {
			logger.Warn("skipping file", "path", e.Path, "error", err)
			report.skip(e.Path, err.Error())
			continue
		}

		name := filepath.FromSlash(path.Join(segs...))
		if err := m.writeFile(r, name, e.Content, m.opts.FileMode); err != nil {
			logger.Warn("skipping file", "path", e.Path, "error", err)
			report.skip(e.Path, describe(err))
			continue
		}
		report.Written = append(report.Written, e.Path)
		logger.Debug("wrote file", "path", e.Path, "bytes", len(e.Content))
	}

	report.Status = StatusComplete
	if len(report.Skipped) > 0 {
		report.Status = StatusPartialFailure
	}
	logger.Info("materialized project",
		"status", report.Status,
		"written", len(report.Written),
		"skipped", len(report.Skipped),
		"dirs_created", report.DirsCreated)
	return report
}

// mkdirs creates each missing directory prefix of segs under r
func (m *Materializer) mkdirs(r *os.Root, segs []string, made map[string]bool) (int, error) {
	created := 0
	for i := range segs {
		dir := path.Join(segs[:i+1]...)
		if made[dir] {
			continue
		}
		name := filepath.FromSlash(dir)
		err := r.Mkdir(name, m.opts.DirMode)
		switch {
		case err == nil:
			created++
		case errors.Is(err, fs.ErrExist):
			info, statErr := r.Stat(name)
			if statErr != nil {
				return created, fmt.Errorf("create directory %s: %w", dir, statErr)
			}
			if !info.IsDir() {
				return created, fmt.Errorf("create directory %s: a file is in the way", dir)
			}
		default:
			return created, fmt.Errorf("create directory %s: %s", dir, describe(err))
		}
		made[dir] = true
	}
	return created, nil
}

func writeRootFile(r *os.Root, name string, data []byte, perm os.FileMode) error {
	f, err := r.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// inspectRoot reports whether root exists and, if so, whether it is empty
func inspectRoot(root string) (exists, empty bool, err error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return false, true, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("inspect target directory: %w", err)
	}
	if !info.IsDir() {
		return true, false, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}
	f, err := os.Open(root)
	if err != nil {
		return true, false, fmt.Errorf("inspect target directory: %w", err)
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return true, false, fmt.Errorf("inspect target directory: %w", err)
	}
	return true, len(names) == 0, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrExist):
		return "already exists"
	default:
		return err.Error()
	}
}

func splitPath(p string) []string {
	_, segs := project.NormalizePath(p)
	return segs
}
