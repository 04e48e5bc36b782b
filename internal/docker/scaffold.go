package docker

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Jurkyy/project-pilot/internal/project"
)

type marker struct {
	lang  Language
	build string
}

// markers maps a manifest file name to the language it implies
var markers = map[string]marker{
	"go.mod":           {LanguageGo, ""},
	"package.json":     {LanguageNode, ""},
	"pyproject.toml":   {LanguagePython, "pyproject"},
	"requirements.txt": {LanguagePython, "requirements"},
	"Cargo.toml":       {LanguageRust, ""},
	"pom.xml":          {LanguageJava, "maven"},
	"build.gradle":     {LanguageJava, "gradle"},
	"build.gradle.kts": {LanguageJava, "gradle"},
	"Gemfile":          {LanguageRuby, ""},
}

var extensions = map[string]Language{
	".go":   LanguageGo,
	".js":   LanguageNode,
	".mjs":  LanguageNode,
	".cjs":  LanguageNode,
	".ts":   LanguageNode,
	".py":   LanguagePython,
	".rs":   LanguageRust,
	".java": LanguageJava,
	".kt":   LanguageJava,
	".rb":   LanguageRuby,
}

// entryCandidates are checked in order when picking a main file
var entryCandidates = map[Language][]string{
	LanguageNode:   {"index.js", "server.js", "app.js", "main.js", "src/index.js"},
	LanguagePython: {"main.py", "app.py", "src/main.py", "manage.py"},
	LanguageRuby:   {"main.rb", "app.rb"},
}

// component is a directory built as one image
type component struct {
	dir   string
	lang  Language
	build string
	files []string
	// manifest is the marker file content
	manifest []byte
}

// EnsureContainerSetup returns generated container files for a project that
// has no container manifest of its own. It returns nil when the parsed
// project already carries one. root only names the project.
func EnsureContainerSetup(parsed project.Parsed, root string) []project.FileEntry {
	if parsed.ContainerManifest {
		return nil
	}

	name := imageName(filepath.Base(root))
	comps := detectComponents(parsed.Entries)
	if len(comps) == 1 && comps[0].dir == "" {
		return []project.FileEntry{dockerfileEntry("", name, comps[0])}
	}

	var out []project.FileEntry
	services := make(map[string]composeService, len(comps))
	for _, c := range comps {
		svc := uniqueName(imageName(path.Base(c.dir)), services)
		out = append(out, dockerfileEntry(c.dir, svc, c))
		services[svc] = composeService{Build: "./" + c.dir, Image: name + "-" + svc}
	}
	body, err := yaml.Marshal(composeFile{Services: services})
	if err != nil {
		panic(fmt.Sprintf("marshal compose file: %v", err))
	}
	out = append(out, newEntry("compose.yaml", body, project.KindCompose))
	return out
}

// detectComponents groups entries into build components. A marker at the
// root makes the whole project one component; otherwise each top-level
// directory with its own marker is a component. Without markers the dominant
// source extension decides.
func detectComponents(entries []project.FileEntry) []component {
	byDir := make(map[string]*component)
	for _, e := range entries {
		segs := e.Segments
		if len(segs) == 0 || len(segs) > 2 {
			continue
		}
		mk, ok := markers[segs[len(segs)-1]]
		if !ok {
			continue
		}
		dir := ""
		if len(segs) == 2 {
			dir = segs[0]
		}
		if _, seen := byDir[dir]; seen {
			continue
		}
		byDir[dir] = &component{dir: dir, lang: mk.lang, build: mk.build, manifest: e.Content}
	}

	if root, ok := byDir[""]; ok {
		root.files = pathsUnder(entries, "")
		return []component{*root}
	}

	if len(byDir) > 0 {
		dirs := make([]string, 0, len(byDir))
		for d := range byDir {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		comps := make([]component, 0, len(dirs))
		for _, d := range dirs {
			c := byDir[d]
			c.files = pathsUnder(entries, d)
			comps = append(comps, *c)
		}
		return comps
	}

	return []component{{lang: dominantLanguage(entries), files: pathsUnder(entries, "")}}
}

func dominantLanguage(entries []project.FileEntry) Language {
	counts := make(map[Language]int)
	for _, e := range entries {
		if e.Kind != project.KindSource {
			continue
		}
		if lang, ok := extensions[strings.ToLower(path.Ext(e.Path))]; ok {
			counts[lang]++
		}
	}
	best, bestN := LanguageGeneric, 0
	for _, lang := range []Language{LanguageGo, LanguageNode, LanguagePython, LanguageRust, LanguageJava, LanguageRuby} {
		if counts[lang] > bestN {
			best, bestN = lang, counts[lang]
		}
	}
	return best
}

// pathsUnder returns entry paths relative to dir
func pathsUnder(entries []project.FileEntry, dir string) []string {
	var out []string
	for _, e := range entries {
		if dir == "" {
			out = append(out, e.Path)
			continue
		}
		if rel, ok := strings.CutPrefix(e.Path, dir+"/"); ok {
			out = append(out, rel)
		}
	}
	return out
}

func dockerfileEntry(dir, name string, c component) project.FileEntry {
	data := templateData{Name: name, Build: c.build, Entry: pickEntry(c)}
	if c.lang == LanguageRust {
		if m := cargoName.FindSubmatch(c.manifest); m != nil {
			data.Name = string(m[1])
		}
	}
	body, err := renderDockerfile(c.lang, data)
	if err != nil {
		panic(fmt.Sprintf("render %s dockerfile: %v", c.lang, err))
	}
	return newEntry(path.Join(dir, "Dockerfile"), body, project.KindDockerfile)
}

func pickEntry(c component) string {
	candidates, ok := entryCandidates[c.lang]
	if !ok {
		return ""
	}
	have := make(map[string]bool, len(c.files))
	for _, f := range c.files {
		have[f] = true
	}
	for _, cand := range candidates {
		if have[cand] {
			return cand
		}
	}
	if c.lang == LanguageNode {
		// npm start
		return ""
	}
	for _, f := range c.files {
		if extensions[strings.ToLower(path.Ext(f))] == c.lang {
			return f
		}
	}
	return ""
}

func newEntry(p string, content []byte, kind project.Kind) project.FileEntry {
	norm, segs := project.NormalizePath(p)
	return project.FileEntry{Path: norm, Segments: segs, Declared: norm, Content: content, Kind: kind}
}

// cargoName only accepts names cargo itself allows
var cargoName = regexp.MustCompile(`(?m)^[ \t]*name[ \t]*=[ \t]*"([A-Za-z0-9_-]+)"`)

var nonImageChars = regexp.MustCompile(`[^a-z0-9_.-]+`)

// imageName turns a directory name into a valid image or service name
func imageName(s string) string {
	s = nonImageChars.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-._")
	if s == "" {
		return "app"
	}
	return s
}

// uniqueName suffixes name with a number until no service uses it
func uniqueName(name string, services map[string]composeService) string {
	candidate := name
	for i := 2; ; i++ {
		if _, taken := services[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Build string `yaml:"build"`
	Image string `yaml:"image,omitempty"`
}
