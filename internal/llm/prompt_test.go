package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jurkyy/project-pilot/internal/project"
)

func TestCompose(t *testing.T) {
	req := project.Request{Description: "  a todo REST API  ", Name: "todo", Language: "go"}

	q := Compose(req)
	require.Len(t, q.Messages, 2)
	assert.Equal(t, RoleSystem, q.Messages[0].Role)
	assert.Equal(t, RoleUser, q.Messages[1].Role)

	assert.Contains(t, q.Messages[0].Content, "### FILE:")
	assert.Contains(t, q.Messages[0].Content, "### CONTAINER:")
	assert.Contains(t, q.Messages[1].Content, "---\ntodo\n---")
	assert.Contains(t, q.Messages[1].Content, "---\ngo\n---")
	assert.Contains(t, q.Messages[1].Content, "---\na todo REST API\n---")
}

func TestCompose_Deterministic(t *testing.T) {
	req := project.Request{Description: "a cli that prints the weather"}
	assert.Equal(t, Compose(req), Compose(req))
}

func TestCompose_Defaults(t *testing.T) {
	q := Compose(project.Request{Description: "x"})
	assert.Contains(t, q.Messages[1].Content, "---\nmyapp\n---")
	assert.Contains(t, q.Messages[1].Content, "choose the most suitable language")
}

func TestCompose_ExampleParses(t *testing.T) {
	// the format shown to the model must be accepted by the parser
	raw := "### FILE: relative/path/to/file.ext\n```txt\nhello\n```\n"
	parsed, err := project.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"relative/path/to/file.ext"}, parsed.Paths())
}

func TestCompose_LongerFenceRuleParses(t *testing.T) {
	q := Compose(project.Request{Description: "x"})
	assert.Contains(t, q.Messages[0].Content, "wrap that file in a longer fence such as ````")

	// a README following that rule keeps its own fences
	readme := "# x\n\n```sh\nmake run\n```\n"
	raw := "### FILE: README.md\n````markdown\n" + readme + "````\n\n### FILE: main.go\n```go\npackage main\n```\n"
	parsed, err := project.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "main.go"}, parsed.Paths())
	assert.Equal(t, readme, string(parsed.Entries[0].Content))
}
