package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/generator"
	"github.com/Jurkyy/project-pilot/internal/output"
	"github.com/Jurkyy/project-pilot/internal/project"
	"github.com/Jurkyy/project-pilot/internal/workspace"
)

const defaultProjectName = "myapp"

type generateFlags struct {
	description  string
	output       string
	name         string
	language     string
	provider     string
	model        string
	maxTokens    int
	apiKey       string
	responseFile string
	saveResponse string
	pipelineOptions
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate a project from a description",
		Long: `Send the description to the configured LLM and write the files it answers
with under the output directory.

The output directory must not exist or be empty unless --overwrite is given.
Nothing is written if the answer cannot be parsed or names a path outside the
output directory. A Dockerfile (and compose.yaml for multi-service projects)
is added when the answer has none.`,
		Example: `  project-pilot generate -d "a URL shortener with a REST API" -l go -n shorty
  project-pilot generate "a markdown to html converter" -o ./md2html
  project-pilot generate --response-file answer.md -o ./replay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.description == "" && len(args) > 0 {
				f.description = strings.Join(args, " ")
			}
			return runGenerate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.description, "description", "d", "", "what the program should do, be as specific as possible")
	flags.StringVarP(&f.output, "output", "o", "", "directory to write the project to (default ./<name>)")
	flags.StringVarP(&f.name, "name", "n", defaultProjectName, "project name")
	flags.StringVarP(&f.language, "language", "l", "", "programming language (default: let the model choose)")
	flags.StringVar(&f.provider, "provider", "", "LLM provider: openai or deepseek (overrides llm.provider)")
	flags.StringVarP(&f.model, "model", "m", "", "model name (overrides llm.model)")
	flags.IntVarP(&f.maxTokens, "max-tokens", "t", 0, "max completion tokens (overrides llm.max_tokens)")
	flags.StringVar(&f.apiKey, "api-key", "", "LLM API key (default from llm.api_key or the provider's env var)")
	flags.StringVar(&f.responseFile, "response-file", "", "materialize a saved model response instead of calling the LLM")
	flags.StringVar(&f.saveResponse, "save-response", "", "write the raw model response to this file")
	flags.BoolVar(&f.overwrite, "overwrite", false, "write into an existing non-empty output directory")
	flags.BoolVar(&f.gitInit, "git-init", false, "initialize a git repository and commit the generated files")
	flags.BoolVar(&f.publish, "publish", false, "create a GitHub repository and push (implies --git-init)")
	flags.BoolVar(&f.private, "private", false, "make the published repository private")

	return cmd
}

func runGenerate(cmd *cobra.Command, f *generateFlags) error {
	if err := applyLLMOverrides(cmd, f); err != nil {
		return err
	}

	name := strings.TrimSpace(f.name)
	if name == "" {
		name = defaultProjectName
	}
	target := f.output
	if target == "" {
		target = filepath.Join(".", name)
	}
	if f.saveResponse != "" {
		if err := checkOutsideRoot(f.saveResponse, target); err != nil {
			return err
		}
	}

	req := project.Request{
		Description: f.description,
		TargetRoot:  target,
		Name:        name,
		Language:    f.language,
	}

	gen, err := newGenerator(f.pipelineOptions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := func(stage generator.Stage, message string) {
		printer.Info("%s", message)
	}

	var res *generator.Result
	if f.responseFile != "" {
		raw, readErr := os.ReadFile(f.responseFile)
		if readErr != nil {
			return &output.CLIError{
				Summary:  "cannot read response file",
				Detail:   readErr.Error(),
				ExitCode: output.ExitUsageError,
			}
		}
		printer.Header(fmt.Sprintf("Materializing %s", f.responseFile))
		res, err = gen.Synthesize(ctx, req, string(raw), progress)
	} else {
		if strings.TrimSpace(f.description) == "" {
			return &output.CLIError{
				Summary:    "a project description is required",
				Suggestion: "Pass it with --description or as an argument",
				ExitCode:   output.ExitUsageError,
			}
		}
		printer.Header(fmt.Sprintf("Generating %s", name))
		res, err = gen.Generate(ctx, req, cfg.APIKey(f.apiKey), progress)
	}

	if f.saveResponse != "" && res != nil && res.Response.Text != "" {
		if saveErr := os.WriteFile(f.saveResponse, []byte(res.Response.Text), 0o600); saveErr != nil {
			printer.Warning("could not save response: %v", saveErr)
		} else {
			printer.Info("Saved model response to %s", f.saveResponse)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			printer.Warning("interrupted")
		}
		return err
	}

	printResult(res)
	return nil
}

// applyLLMOverrides folds the LLM flags into the loaded config
func applyLLMOverrides(cmd *cobra.Command, f *generateFlags) error {
	if f.provider != "" {
		if _, err := credential.ParseProvider(f.provider); err != nil {
			return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError}
		}
		cfg.LLM.Provider = f.provider
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	if cmd.Flags().Changed("max-tokens") {
		if f.maxTokens <= 0 {
			return &output.CLIError{
				Summary:  fmt.Sprintf("--max-tokens must be positive, got %d", f.maxTokens),
				ExitCode: output.ExitUsageError,
			}
		}
		cfg.LLM.MaxTokens = f.maxTokens
	}
	return nil
}

// checkOutsideRoot rejects a --save-response path inside the output
// directory, where it would end up as part of the project
func checkOutsideRoot(path, root string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError}
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError}
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &output.CLIError{
			Summary:    "--save-response must point outside the output directory",
			Detail:     absPath,
			Suggestion: "Save the response next to the project, not inside it",
			ExitCode:   output.ExitUsageError,
		}
	}
	return nil
}

func printResult(res *generator.Result) {
	if res.Response.Truncated {
		printer.Warning("the model response hit the token limit; some files may be incomplete")
	}
	for _, w := range res.Parsed.Warnings {
		printer.Warning("%s", w)
	}

	report := res.Report
	printer.Header("Files")
	printer.PrintReport(report, res.Generated)

	if len(res.Generated) > 0 {
		printer.Info("Added container setup: %s", strings.Join(res.Generated, ", "))
	}
	if res.Commit != "" {
		printer.Info("Committed %s", shortHash(res.Commit))
	}
	if res.RepoURL != "" {
		printer.Success("Published to %s", res.RepoURL)
	}

	if report.Status == workspace.StatusPartialFailure {
		printer.Warning("%d of %d file(s) could not be written", len(report.Skipped), len(report.Skipped)+len(report.Written))
		return
	}
	printer.Success("Project written to %s (%d files)", report.Root, len(report.Written))
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
