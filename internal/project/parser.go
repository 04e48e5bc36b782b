package project

import (
	"fmt"
	"regexp"
	"strings"
)

// Markers that label the fenced block following them. They are the wire
// contract between the prompt and Parse and must stay backward compatible.
const (
	FileMarker      = "FILE:"
	ContainerMarker = "CONTAINER:"
)

// Unlabeled blocks at or below these sizes are treated as prose examples.
const (
	trivialMaxLines = 2
	trivialMaxBytes = 200
)

var markerRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*|[-*]\s+)?(?:\*\*|__)?\s*(FILE|CONTAINER)\s*:\s*(.*?)\s*(?:\*\*|__)?\s*$`)

type label struct {
	text      string
	line      int
	container bool
}

type fence struct {
	char   byte
	size   int
	indent int
	info   string
}

// Parse extracts path-labeled file blocks from a model response, in the
// order they appear. Any inconsistency fails the whole response.
func Parse(raw string) (Parsed, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var out Parsed
	seen := make(map[string]int)
	var pending *label

	dangling := func() {
		if pending != nil {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("line %d: label %q is not followed by a code block", pending.line, pending.text))
			pending = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := markerRe.FindStringSubmatch(line); m != nil {
			dangling()
			text := cleanLabel(m[2])
			if text == "" {
				out.Warnings = append(out.Warnings, fmt.Sprintf("line %d: empty %s label", i+1, strings.ToUpper(m[1])))
				continue
			}
			pending = &label{text: text, line: i + 1, container: strings.EqualFold(m[1], "CONTAINER")}
			continue
		}

		f, ok := openFence(line)
		if !ok {
			if pending != nil && strings.TrimSpace(line) != "" {
				dangling()
			}
			continue
		}

		lbl := pending
		pending = nil
		if lbl == nil {
			if p := infoLabel(f.info); p != "" {
				lbl = &label{text: p, line: i + 1}
			}
		}

		if lbl == nil {
			body, end, _ := readBlock(lines, i+1, f)
			if !isTrivial(body) {
				return Parsed{}, &ParseError{Err: ErrUnlabeledContent, Line: i + 1, Excerpt: excerpt(firstNonBlank(body))}
			}
			i = end
			continue
		}

		body, end, closed, balanced := readLabeledBlock(lines, i+1, f)
		if !closed {
			return Parsed{}, &ParseError{Err: ErrUnterminatedBlock, Path: lbl.text, Line: lbl.line}
		}

		p, segs := NormalizePath(lbl.text)
		if !balanced {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("line %d: %s ends inside a nested code block", lbl.line, p))
		}
		// paths that differ only in case collide on case-insensitive filesystems
		key := strings.ToLower(p)
		if prev, dup := seen[key]; dup {
			return Parsed{}, &ParseError{
				Err:     ErrDuplicatePath,
				Path:    p,
				Line:    lbl.line,
				Excerpt: fmt.Sprintf("first declared at line %d", prev),
			}
		}
		seen[key] = lbl.line

		kind := ClassifyPath(p)
		if lbl.container && kind != KindCompose {
			kind = KindDockerfile
		}

		out.Entries = append(out.Entries, FileEntry{
			Path:     p,
			Segments: segs,
			Declared: lbl.text,
			Content:  blockContent(body),
			Kind:     kind,
			Line:     lbl.line,
		})
		i = end
	}
	dangling()

	if len(out.Entries) == 0 {
		return Parsed{}, &ParseError{Err: ErrEmptyProject, Excerpt: excerpt(firstNonBlank(lines))}
	}
	for _, e := range out.Entries {
		if e.IsContainerManifest() {
			out.ContainerManifest = true
			break
		}
	}
	return out, nil
}

// NormalizePath unifies separators, drops empty and "." segments and strips
// leading and trailing slashes. ".." segments are kept for the sanitizer.
func NormalizePath(declared string) (string, []string) {
	s := strings.ReplaceAll(strings.TrimSpace(declared), `\`, "/")
	var segs []string
	for _, seg := range strings.Split(s, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." {
			continue
		}
		segs = append(segs, seg)
	}
	return strings.Join(segs, "/"), segs
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(strings.Trim(s, "`\"'*"))
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func openFence(line string) (fence, bool) {
	trimmed := strings.TrimLeft(line, " ")
	indent := len(line) - len(trimmed)
	if indent > 3 || len(trimmed) < 3 {
		return fence{}, false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return fence{}, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(trimmed[n:])
	if c == '`' && strings.Contains(info, "`") {
		return fence{}, false
	}
	return fence{char: c, size: n, indent: indent, info: info}, true
}

func closesFence(line string, f fence) bool {
	t := strings.TrimSpace(line)
	if len(t) < f.size {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] != f.char {
			return false
		}
	}
	return true
}

// readBlock collects lines after an opening fence. It returns the body, the
// index of the closing fence (or the last line) and whether it was closed.
func readBlock(lines []string, start int, f fence) ([]string, int, bool) {
	var body []string
	for j := start; j < len(lines); j++ {
		if closesFence(lines[j], f) {
			return body, j, true
		}
		body = append(body, stripIndent(lines[j], f.indent))
	}
	return body, len(lines) - 1, false
}

// readLabeledBlock collects the content of a labeled block. File content may
// carry fenced blocks of its own, so a bare fence only closes the block when
// the next non-blank line starts another file or the input ends. Otherwise the
// last bare fence outside a nested block, before the next file marker, closes
// it. balanced is false when the block had to end inside a nested block.
func readLabeledBlock(lines []string, start int, f fence) (body []string, end int, closed, balanced bool) {
	depth, last, lastAny := 0, -1, -1
	for j := start; j < len(lines); j++ {
		line := lines[j]
		if lastAny >= 0 && (markerRe.MatchString(line) || depth == 0 && labeledFence(line)) {
			break
		}
		switch {
		case closesFence(line, f):
			lastAny = j
			if depth > 0 {
				depth--
				continue
			}
			last = j
			if nextStartsFile(lines, j+1) {
				return blockLines(lines, start, j, f), j, true, true
			}
		case opensNested(line, f):
			depth++
		}
	}

	switch {
	case last >= 0:
		return blockLines(lines, start, last, f), last, true, true
	case lastAny >= 0:
		return blockLines(lines, start, lastAny, f), lastAny, true, false
	}
	return blockLines(lines, start, len(lines), f), len(lines) - 1, false, false
}

func blockLines(lines []string, start, end int, f fence) []string {
	var body []string
	for _, l := range lines[start:end] {
		body = append(body, stripIndent(l, f.indent))
	}
	return body
}

// nextStartsFile reports whether the first non-blank line from i on starts a
// new file, or there is none
func nextStartsFile(lines []string, i int) bool {
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		return markerRe.MatchString(lines[i]) || labeledFence(lines[i])
	}
	return true
}

func labeledFence(line string) bool {
	f, ok := openFence(line)
	return ok && infoLabel(f.info) != ""
}

// opensNested reports whether line opens a fence that the outer fence f's
// closer would otherwise match
func opensNested(line string, f fence) bool {
	g, ok := openFence(line)
	return ok && g.info != "" && g.char == f.char && g.size >= f.size
}

func stripIndent(line string, n int) string {
	for n > 0 && strings.HasPrefix(line, " ") {
		line = line[1:]
		n--
	}
	return line
}

// infoLabel finds a path in a fence info string such as "go:cmd/main.go"
// or `python title="app/main.py"`.
func infoLabel(info string) string {
	for _, field := range strings.Fields(info) {
		for _, key := range []string{"path=", "file=", "filename=", "title="} {
			if strings.HasPrefix(strings.ToLower(field), key) {
				return cleanLabel(field[len(key):])
			}
		}
	}
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	lang, p, ok := strings.Cut(fields[0], ":")
	if !ok || p == "" || !isLangName(lang) {
		return ""
	}
	return cleanLabel(p)
}

func isLangName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '#' || r == '-') {
			return false
		}
	}
	return true
}

func isTrivial(body []string) bool {
	nonBlank, size := 0, 0
	for _, l := range body {
		size += len(l) + 1
		if strings.TrimSpace(l) != "" {
			nonBlank++
		}
	}
	return nonBlank <= trivialMaxLines && size <= trivialMaxBytes
}

func blockContent(body []string) []byte {
	if len(body) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(body, "\n") + "\n")
}

func firstNonBlank(lines []string) string {
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			return t
		}
	}
	return ""
}
