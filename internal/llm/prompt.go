package llm

import (
	"fmt"
	"strings"

	"github.com/Jurkyy/project-pilot/internal/project"
)

const defaultProjectName = "myapp"

// systemPrompt documents the block format Parse depends on. Keep the marker
// wording stable: older responses must keep parsing.
var systemPrompt = `You are a professional code generation assistant. Based on the user's requirements, generate a complete, working project skeleton.

OUTPUT FORMAT (mandatory):
Emit every file as a path marker line immediately followed by one fenced code block holding the full file content:

### ` + project.FileMarker + ` relative/path/to/file.ext
` + "```" + `<language>
<file content>
` + "```" + `

Rules:
1. Use one "### ` + project.FileMarker + `" marker per file, directly above its code block.
2. If a file itself contains lines starting with ` + "```" + ` (for example a README with code examples), wrap that file in a longer fence such as ` + "````" + ` or ~~~~ so its own fences stay inside it.
3. Paths are relative to the project root, use forward slashes, and never contain ".." or start with "/".
4. Each path appears exactly once, ignoring letter case.
5. Emit at most one container manifest, labeled "### ` + project.ContainerMarker + ` Dockerfile" (or "### ` + project.ContainerMarker + ` compose.yaml").
6. Include a README.md with instructions to build and run the application.
7. Include a Makefile with "build", "run" and "test" targets that use the container setup and clean up after themselves.
8. Do not put code blocks without a path marker in your answer, except one-line shell examples.
9. Keep file content concise with core functionality only.
Short prose outside the blocks is allowed and will be ignored.`

// Compose builds the query for a request. It is deterministic.
func Compose(req project.Request) Query {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultProjectName
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "choose the most suitable language"
	}

	user := fmt.Sprintf(`Generate a project with the following requirements.

Project Name:
---
%s
---

Programming Language:
---
%s
---

Application Requirements:
---
%s
---`, name, language, strings.TrimSpace(req.Description))

	return Query{Messages: []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: user},
	}}
}
