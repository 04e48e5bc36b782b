package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/docker"
	"github.com/Jurkyy/project-pilot/internal/github"
	"github.com/Jurkyy/project-pilot/internal/llm"
	"github.com/Jurkyy/project-pilot/internal/metrics"
	"github.com/Jurkyy/project-pilot/internal/project"
	"github.com/Jurkyy/project-pilot/internal/workspace"
)

// ErrEmptyDescription is returned when the request has no description
var ErrEmptyDescription = errors.New("project description is empty")

// Sender sends a composed query to the model
type Sender interface {
	Send(ctx context.Context, q llm.Query, key credential.Key) llm.Response
}

// Publisher creates a remote repository and pushes the committed tree in dir
type Publisher interface {
	Publish(ctx context.Context, dir, name, description string, private bool) (string, error)
}

// ProgressFunc is called when a run enters a stage
type ProgressFunc func(stage Stage, message string)

// Options configures a Generator
type Options struct {
	Provider credential.Provider
	Limits   project.Limits
	// GitInit commits the written files to a new repository in the root
	GitInit bool
	// Publish creates a remote repository and pushes; implies GitInit
	Publish bool
	Private bool
	Author  github.Author
}

// Generator runs the description-to-project pipeline
type Generator struct {
	sender       Sender
	materializer *workspace.Materializer
	publisher    Publisher
	opts         Options
	logger       *slog.Logger
}

// NewGenerator creates a new generator. publisher may be nil when
// publishing is off.
func NewGenerator(sender Sender, materializer *workspace.Materializer, publisher Publisher, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		sender:       sender,
		materializer: materializer,
		publisher:    publisher,
		opts:         opts,
		logger:       logger,
	}
}

// Result is everything a run produced. It is returned alongside errors so
// callers can still inspect the raw response.
type Result struct {
	RunID     string
	Request   project.Request
	Response  llm.Response
	Parsed    project.Parsed
	Generated []string
	Report    workspace.Report
	Commit    string
	RepoURL   string
	Duration  time.Duration
}

// Generate validates the key, queries the model and materializes its answer
// under req.TargetRoot
func (g *Generator) Generate(ctx context.Context, req project.Request, apiKey string, progress ProgressFunc) (*Result, error) {
	res, logger := g.start(req)
	progress = orNoop(progress)
	defer g.finish(res, time.Now())

	progress(StageCredential, "Validating API key...")
	key, err := credential.Validate(g.opts.Provider, apiKey)
	if err != nil {
		return res, g.fail(logger, StageCredential, err)
	}

	progress(StageCompose, "Composing prompt...")
	if strings.TrimSpace(req.Description) == "" {
		return res, g.fail(logger, StageCompose, ErrEmptyDescription)
	}
	q := llm.Compose(req)

	progress(StageLLM, "Generating code with LLM...")
	resp := g.sender.Send(ctx, q, key)
	res.Response = resp
	metrics.LLMCallTotal.WithLabelValues(string(resp.Status)).Inc()
	metrics.LLMAttempts.Observe(float64(resp.Attempts))
	if !resp.OK() {
		return res, g.fail(logger, StageLLM, resp.Error())
	}
	metrics.LLMTokensUsed.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))
	logger.Info("model responded", "attempts", resp.Attempts, "bytes", len(resp.Text), "truncated", resp.Truncated)

	return res, g.synthesize(ctx, res, resp.Text, progress, logger)
}

// Synthesize materializes a model response that was obtained elsewhere,
// e.g. a saved response file
func (g *Generator) Synthesize(ctx context.Context, req project.Request, raw string, progress ProgressFunc) (*Result, error) {
	res, logger := g.start(req)
	defer g.finish(res, time.Now())
	res.Response = llm.Response{Text: raw, Status: llm.StatusSuccess}
	return res, g.synthesize(ctx, res, raw, orNoop(progress), logger)
}

func (g *Generator) synthesize(ctx context.Context, res *Result, raw string, progress ProgressFunc, logger *slog.Logger) error {
	root := res.Request.TargetRoot

	progress(StageParse, "Parsing model response...")
	parsed, err := project.Parse(raw)
	if err != nil {
		return g.fail(logger, StageParse, err)
	}
	res.Parsed = parsed
	for _, w := range parsed.Warnings {
		logger.Warn("parse warning", "warning", w)
	}
	logger.Info("parsed response", "files", len(parsed.Entries), "container_manifest", parsed.ContainerManifest)

	progress(StageSanitize, "Validating file paths...")
	entries := append([]project.FileEntry(nil), parsed.Entries...)
	generated := docker.EnsureContainerSetup(parsed, root)
	for _, e := range generated {
		res.Generated = append(res.Generated, e.Path)
	}
	entries = append(entries, generated...)
	if len(generated) > 0 {
		logger.Info("generated container setup", "files", res.Generated)
	}

	entries, err = project.Sanitize(entries, root, g.opts.Limits)
	if err != nil {
		return g.fail(logger, StageSanitize, err)
	}

	if err := ctx.Err(); err != nil {
		return g.fail(logger, StageMaterialize, err)
	}

	progress(StageMaterialize, "Writing files to disk...")
	report := g.materializer.Materialize(entries, root)
	res.Report = report
	metrics.FilesWritten.Add(float64(len(report.Written)))
	metrics.FilesSkipped.Add(float64(len(report.Skipped)))
	if report.Status == workspace.StatusAborted {
		return g.fail(logger, StageMaterialize, report.Err())
	}
	for _, s := range report.Skipped {
		logger.Warn("file skipped", "path", s.Path, "reason", s.Reason)
	}

	if g.opts.GitInit || g.opts.Publish {
		progress(StageGit, "Committing files...")
		commit, err := github.InitRepository(report.Root, report.Written, commitMessage(res.Request), g.opts.Author)
		if err != nil {
			return g.fail(logger, StageGit, err)
		}
		res.Commit = commit
		logger.Info("committed project", "commit", commit)
	}

	if g.opts.Publish {
		if report.Status != workspace.StatusComplete {
			logger.Warn("not publishing a partially written project", "skipped", len(report.Skipped))
			return nil
		}
		if g.publisher == nil {
			return g.fail(logger, StagePublish, errors.New("no GitHub client configured"))
		}
		progress(StagePublish, "Creating GitHub repository...")
		url, err := g.publisher.Publish(ctx, report.Root, repoName(res.Request), summary(res.Request.Description), g.opts.Private)
		res.RepoURL = url
		if err != nil {
			return g.fail(logger, StagePublish, err)
		}
		logger.Info("published project", "repo_url", url)
	}

	return nil
}

func (g *Generator) start(req project.Request) (*Result, *slog.Logger) {
	res := &Result{RunID: uuid.New().String(), Request: req}
	logger := g.logger.With("run_id", res.RunID)
	logger.Info("generation started", "root", req.TargetRoot, "name", req.Name, "language", req.Language)
	return res, logger
}

func (g *Generator) finish(res *Result, started time.Time) {
	res.Duration = time.Since(started)
	metrics.RunDuration.Observe(res.Duration.Seconds())
	switch res.Report.Status {
	case workspace.StatusComplete, workspace.StatusPartialFailure:
		metrics.RunsTotal.WithLabelValues(string(res.Report.Status)).Inc()
	default:
		metrics.RunsTotal.WithLabelValues("failed").Inc()
	}
}

func (g *Generator) fail(logger *slog.Logger, stage Stage, err error) error {
	metrics.StageFailuresTotal.WithLabelValues(string(stage)).Inc()
	logger.Error("generation failed", "stage", stage, "error", err)
	return &StageError{Stage: stage, Err: err}
}

func orNoop(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(Stage, string) {}
	}
	return fn
}

func commitMessage(req project.Request) string {
	return fmt.Sprintf("Initial commit: %s", summary(req.Description))
}

// summary returns the first line of a description, shortened for commit
// messages and repository descriptions
func summary(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	if r := []rune(line); len(r) > 72 {
		return string(r[:69]) + "..."
	}
	return line
}

func repoName(req project.Request) string {
	if name := strings.TrimSpace(req.Name); name != "" {
		return name
	}
	return "myapp"
}
