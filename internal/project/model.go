// Package project turns a raw model response into a validated set of files.
package project

import (
	"path"
	"strings"
)

// Request is a single project generation request
type Request struct {
	Description string `json:"description"`
	TargetRoot  string `json:"target_root"`
	Name        string `json:"name,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Kind classifies a generated file
type Kind string

const (
	KindSource     Kind = "source"
	KindConfig     Kind = "config"
	KindDockerfile Kind = "dockerfile"
	KindCompose    Kind = "compose"
)

// FileEntry is one file extracted from a model response
type FileEntry struct {
	// Path is the normalized, forward-slash relative path
	Path string
	// Segments is Path split on "/"
	Segments []string
	// Declared is the label exactly as the model wrote it
	Declared string
	Content  []byte
	Kind     Kind
	// Line is the 1-based line of the block's label in the response
	Line int
}

// IsContainerManifest reports whether the entry is a Dockerfile or compose file
func (e FileEntry) IsContainerManifest() bool {
	return e.Kind == KindDockerfile || e.Kind == KindCompose
}

// Parsed is the structured result of parsing a model response
type Parsed struct {
	Entries           []FileEntry
	ContainerManifest bool
	Warnings          []string
}

// TotalBytes returns the aggregate content size
func (p Parsed) TotalBytes() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Content)
	}
	return n
}

// Paths returns entry paths in discovery order
func (p Parsed) Paths() []string {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Path)
	}
	return out
}

var configNames = map[string]bool{
	"makefile":      true,
	".gitignore":    true,
	".dockerignore": true,
	".editorconfig": true,
	".env":          true,
	".env.example":  true,
	"go.mod":        true,
	"go.sum":        true,
	"package.json":  true,
	"cargo.toml":    true,
	"gemfile":       true,
	"pom.xml":       true,
}

var configExts = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".cfg":  true,
	".conf": true,
	".env":  true,
	".lock": true,
}

// ClassifyPath derives a Kind from a normalized path's file name
func ClassifyPath(p string) Kind {
	base := strings.ToLower(path.Base(p))
	switch {
	case base == "dockerfile", strings.HasPrefix(base, "dockerfile."), strings.HasSuffix(base, ".dockerfile"):
		return KindDockerfile
	case isComposeName(base):
		return KindCompose
	case configNames[base], configExts[path.Ext(base)]:
		return KindConfig
	default:
		return KindSource
	}
}

func isComposeName(base string) bool {
	switch base {
	case "compose.yaml", "compose.yml", "docker-compose.yaml", "docker-compose.yml":
		return true
	}
	return strings.HasPrefix(base, "docker-compose.") && (strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml"))
}
