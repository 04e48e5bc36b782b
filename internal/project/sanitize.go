package project

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Limits bound what a single response may write
type Limits struct {
	MaxFileBytes  int64 `mapstructure:"max_file_bytes"`
	MaxTotalBytes int64 `mapstructure:"max_total_bytes"`
	MaxFiles      int   `mapstructure:"max_files"`
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:  1 << 20,
		MaxTotalBytes: 16 << 20,
		MaxFiles:      500,
	}
}

// Sanitize validates every entry against traversal and size constraints.
// It is purely lexical and rejects the whole batch on the first violation.
func Sanitize(entries []FileEntry, root string, limits Limits) ([]FileEntry, error) {
	if limits.MaxFiles > 0 && len(entries) > limits.MaxFiles {
		return nil, &SanitizeError{
			Err:    ErrQuotaExceeded,
			Detail: fmt.Sprintf("%d files, limit is %d", len(entries), limits.MaxFiles),
		}
	}

	cleanRoot := filepath.Clean(root)
	out := make([]FileEntry, 0, len(entries))
	var total int64

	for _, e := range entries {
		if isAbsoluteLabel(e.Declared) || isAbsoluteLabel(e.Path) {
			return nil, &SanitizeError{Err: ErrAbsolutePath, Path: labelOf(e)}
		}

		segs := e.Segments
		if segs == nil {
			_, segs = NormalizePath(e.Path)
		}
		if len(segs) == 0 {
			return nil, &SanitizeError{Err: ErrInvalidPath, Path: labelOf(e), Detail: "empty path"}
		}
		for _, seg := range segs {
			if seg == ".." {
				return nil, &SanitizeError{Err: ErrTraversal, Path: labelOf(e)}
			}
			if strings.ContainsRune(seg, 0) {
				return nil, &SanitizeError{Err: ErrInvalidPath, Path: labelOf(e), Detail: "NUL byte in path"}
			}
			if strings.EqualFold(seg, ".git") {
				return nil, &SanitizeError{Err: ErrInvalidPath, Path: labelOf(e), Detail: "writes into .git are not allowed"}
			}
		}

		if !within(cleanRoot, filepath.Join(cleanRoot, filepath.FromSlash(strings.Join(segs, "/")))) {
			return nil, &SanitizeError{Err: ErrTraversal, Path: labelOf(e)}
		}

		size := int64(len(e.Content))
		if limits.MaxFileBytes > 0 && size > limits.MaxFileBytes {
			return nil, &SanitizeError{
				Err:    ErrTooLarge,
				Path:   e.Path,
				Detail: fmt.Sprintf("%d bytes, limit is %d", size, limits.MaxFileBytes),
			}
		}
		total += size
		if limits.MaxTotalBytes > 0 && total > limits.MaxTotalBytes {
			return nil, &SanitizeError{
				Err:    ErrQuotaExceeded,
				Path:   e.Path,
				Detail: fmt.Sprintf("aggregate size exceeds %d bytes", limits.MaxTotalBytes),
			}
		}

		e.Segments = segs
		out = append(out, e)
	}
	return out, nil
}

// within reports whether target is strictly inside root, lexically.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isAbsoluteLabel(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}
	if p[0] == '/' || p[0] == '\\' || p[0] == '~' {
		return true
	}
	if len(p) >= 2 && p[1] == ':' && isLetter(p[0]) {
		return true
	}
	return filepath.IsAbs(p)
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func labelOf(e FileEntry) string {
	if e.Declared != "" {
		return e.Declared
	}
	return e.Path
}
