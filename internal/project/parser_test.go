package project

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(label, lang, content string) string {
	return fmt.Sprintf("### FILE: %s\n```%s\n%s```\n", label, lang, content)
}

func TestParse_RoundTrip(t *testing.T) {
	files := []struct{ path, content string }{
		{"src/main.go", "package main\n\nfunc main() {}\n"},
		{"README.md", "# Demo\n"},
		{"internal/app/app.go", "package app\n"},
		{"config/settings.yaml", "port: 8080\n"},
		{"web/index.html", "<html></html>\n"},
	}

	var b strings.Builder
	b.WriteString("Here is your project.\n\n")
	for _, f := range files {
		b.WriteString(block(f.path, "text", f.content))
		b.WriteString("\nSome commentary between files.\n\n")
	}

	parsed, err := Parse(b.String())
	require.NoError(t, err)
	require.Len(t, parsed.Entries, len(files))
	for i, f := range files {
		assert.Equal(t, f.path, parsed.Entries[i].Path)
		assert.Equal(t, f.content, string(parsed.Entries[i].Content))
	}
	assert.False(t, parsed.ContainerManifest)
	assert.Empty(t, parsed.Warnings)
}

func TestParse_Deterministic(t *testing.T) {
	raw := block("a.py", "python", "print('a')\n") + block("b/c.py", "python", "print('c')\n") +
		"### CONTAINER: Dockerfile\n```dockerfile\nFROM python:3.12\n```\n"

	first, err := Parse(raw)
	require.NoError(t, err)
	second, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParse_DuplicatePath(t *testing.T) {
	raw := block("src/main.go", "go", "package main\n") + block("./src//main.go", "go", "package other\n")

	_, err := Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePath)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "src/main.go", pe.Path)
	assert.Equal(t, 5, pe.Line)
}

func TestParse_DuplicatePathDiffersInCase(t *testing.T) {
	raw := block("README.md", "markdown", "# a\n") + block("readme.md", "markdown", "# b\n")

	_, err := Parse(raw)
	require.ErrorIs(t, err, ErrDuplicatePath)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "readme.md", pe.Path)
}

const readmeWithExamples = "# App\n\nRun:\n\n```bash\npython main.py\n```\n\nTest:\n\n```\npytest\n```\n"

func TestParse_NestedFences(t *testing.T) {
	mainPy := block("main.py", "python", "print('hi')\n")

	tests := []struct {
		name  string
		raw   string
		paths []string
	}{
		{"readme last", mainPy + block("README.md", "markdown", readmeWithExamples), []string{"main.py", "README.md"}},
		{"readme first", block("README.md", "markdown", readmeWithExamples) + mainPy, []string{"README.md", "main.py"}},
		{"readme first with prose after", block("README.md", "markdown", readmeWithExamples) + "\nNow the code:\n\n" + mainPy, []string{"README.md", "main.py"}},
		{"readme last with prose after", mainPy + block("README.md", "markdown", readmeWithExamples) + "\nThat's all.\n", []string{"main.py", "README.md"}},
		{"longer outer fence", "### FILE: README.md\n````markdown\n" + readmeWithExamples + "````\n" + mainPy, []string{"README.md", "main.py"}},
		{"tilde outer fence", "### FILE: README.md\n~~~markdown\n" + readmeWithExamples + "~~~\n" + mainPy, []string{"README.md", "main.py"}},
		{"info label next", block("README.md", "markdown", readmeWithExamples) + "```python:main.py\nprint('hi')\n```\n", []string{"README.md", "main.py"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.paths, parsed.Paths())
			assert.Empty(t, parsed.Warnings)
			for _, e := range parsed.Entries {
				switch e.Path {
				case "README.md":
					assert.Equal(t, readmeWithExamples, string(e.Content))
				case "main.py":
					assert.Equal(t, "print('hi')\n", string(e.Content))
				}
			}
		})
	}
}

func TestParse_NestedFenceDoesNotSwallowUnlabeledBlock(t *testing.T) {
	raw := block("README.md", "markdown", readmeWithExamples) +
		"\nAnd a helper:\n\n```python\nimport os\n\ndef a():\n    return os.getcwd()\n```\n"

	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrUnlabeledContent)
}

func TestParse_UnbalancedNestedFenceWarns(t *testing.T) {
	raw := "### FILE: README.md\n```markdown\n# App\n\n```bash\nmake run\n```\n" + block("main.go", "go", "package main\n")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "main.go"}, parsed.Paths())
	assert.Equal(t, "# App\n\n```bash\nmake run\n", string(parsed.Entries[0].Content))
	require.Len(t, parsed.Warnings, 1)
	assert.Contains(t, parsed.Warnings[0], "README.md ends inside a nested code block")
}

func TestParse_UnlabeledContent(t *testing.T) {
	raw := block("main.go", "go", "package main\n") +
		"\nAnd here is another file:\n\n```go\npackage util\n\nfunc A() {}\nfunc B() {}\n```\n"

	_, err := Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnlabeledContent)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "package util", pe.Excerpt)
}

func TestParse_TrivialUnlabeledBlockIgnored(t *testing.T) {
	raw := "Run it with:\n\n```bash\nmake run\n```\n\n" + block("Makefile", "make", "run:\n\tgo run .\n")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 1)
	assert.Equal(t, "Makefile", parsed.Entries[0].Path)
	assert.Equal(t, KindConfig, parsed.Entries[0].Kind)
}

func TestParse_EmptyProject(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", "```\nls\n```"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrEmptyProject, "input %q", raw)
	}
}

func TestParse_UnterminatedBlock(t *testing.T) {
	raw := block("a.go", "go", "package a\n") + "### FILE: b.go\n```go\npackage b\n\nfunc B() {"

	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrUnterminatedBlock)
}

func TestParse_MarkerVariants(t *testing.T) {
	raw := strings.Join([]string{
		"FILE: plain.txt",
		"```",
		"plain",
		"```",
		"**FILE: `bold/file.txt`**",
		"",
		"~~~",
		"tilde",
		"~~~",
		"- file: \"list/item.txt\"",
		"````markdown",
		"```",
		"nested fence",
		"```",
		"````",
		"```go:cmd/tool/main.go",
		"package main",
		"```",
		`  ` + "```" + `python title="app/main.py"`,
		"  print('hi')",
		"  ```",
		`### FILE: win\dir\file.txt`,
		"```",
		"win",
		"```",
	}, "\n")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"plain.txt",
		"bold/file.txt",
		"list/item.txt",
		"cmd/tool/main.go",
		"app/main.py",
		"win/dir/file.txt",
	}, parsed.Paths())
	assert.Equal(t, "```\nnested fence\n```\n", string(parsed.Entries[2].Content))
	assert.Equal(t, "print('hi')\n", string(parsed.Entries[4].Content))
}

func TestParse_DanglingLabelWarns(t *testing.T) {
	raw := "### FILE: ghost.txt\nthis is prose, not a block\n\n" + block("real.txt", "", "real\n")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, parsed.Paths())
	require.Len(t, parsed.Warnings, 1)
	assert.Contains(t, parsed.Warnings[0], "ghost.txt")
}

func TestParse_ContainerManifest(t *testing.T) {
	t.Run("container label", func(t *testing.T) {
		raw := block("main.go", "go", "package main\n") + "### CONTAINER: Containerfile\n```\nFROM scratch\n```\n"
		parsed, err := Parse(raw)
		require.NoError(t, err)
		assert.True(t, parsed.ContainerManifest)
		assert.Equal(t, KindDockerfile, parsed.Entries[1].Kind)
	})

	t.Run("file label named compose", func(t *testing.T) {
		raw := block("main.go", "go", "package main\n") + block("docker-compose.yml", "yaml", "services: {}\n")
		parsed, err := Parse(raw)
		require.NoError(t, err)
		assert.True(t, parsed.ContainerManifest)
		assert.Equal(t, KindCompose, parsed.Entries[1].Kind)
	})
}

func TestParse_KeepsTraversalSegmentsAndDeclaredLabel(t *testing.T) {
	parsed, err := Parse(block("../../etc/passwd", "", "root:x:0:0\n") + block("/abs/file", "", "x\n"))
	require.NoError(t, err)
	assert.Equal(t, "../../etc/passwd", parsed.Entries[0].Path)
	assert.Equal(t, []string{"..", "..", "etc", "passwd"}, parsed.Entries[0].Segments)
	assert.Equal(t, "abs/file", parsed.Entries[1].Path)
	assert.Equal(t, "/abs/file", parsed.Entries[1].Declared)
}

func TestParse_CRLF(t *testing.T) {
	raw := "### FILE: a.txt\r\n```\r\nline one\r\nline two\r\n```\r\n"
	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(parsed.Entries[0].Content))
}

func TestClassifyPath(t *testing.T) {
	tests := map[string]Kind{
		"Dockerfile":              KindDockerfile,
		"api/Dockerfile.dev":      KindDockerfile,
		"build/app.dockerfile":    KindDockerfile,
		"compose.yaml":            KindCompose,
		"docker-compose.prod.yml": KindCompose,
		"Makefile":                KindConfig,
		"config/app.toml":         KindConfig,
		"package.json":            KindConfig,
		"src/main.rs":             KindSource,
		"README.md":               KindSource,
	}
	for p, want := range tests {
		assert.Equal(t, want, ClassifyPath(p), p)
	}
}
