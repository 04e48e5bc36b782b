package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/generator"
	"github.com/Jurkyy/project-pilot/internal/llm"
	"github.com/Jurkyy/project-pilot/internal/project"
	"github.com/Jurkyy/project-pilot/internal/workspace"
)

// Exit code constants
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitUsageError  = 2
	ExitConfigError = 4
	ExitTimeout     = 5
	ExitCredential  = 6
	ExitLLMError    = 7
	ExitParseError  = 8
	ExitSanitize    = 9
	ExitAborted     = 10
)

// CLIError is a structured error with user-facing context
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
}

// Error implements the error interface, returning the summary
func (e *CLIError) Error() string {
	return e.Summary
}

// FormatError prints a structured error message to stderr
func (p *Printer) FormatError(e *CLIError) {
	if p.useColors {
		color.New(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			color.New(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			fmt.Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	}
}

// FromError turns a pipeline error into a CLIError carrying the exit code
// for the stage that failed
func FromError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	e := &CLIError{Summary: err.Error(), ExitCode: ExitGeneral}
	var stageErr *generator.StageError
	if !errors.As(err, &stageErr) {
		return e
	}
	e.Summary = fmt.Sprintf("%s stage failed", stageErr.Stage)
	e.Detail = stageErr.Err.Error()

	switch stageErr.Stage {
	case generator.StageCredential:
		e.ExitCode = ExitCredential
		e.Suggestion = "Pass --api-key or set OPENAI_API_KEY / DEEPSEEK_API_KEY"
		if errors.Is(err, credential.ErrMalformed) {
			e.Suggestion = "Check the key for stray whitespace or a truncated paste"
		}
	case generator.StageCompose:
		e.ExitCode = ExitUsageError
		e.Suggestion = "Describe the project with --description"
	case generator.StageLLM:
		e.ExitCode = llmExitCode(err)
		e.Suggestion = llmSuggestion(err)
	case generator.StageParse:
		e.ExitCode = ExitParseError
		e.Suggestion = "Re-run, or save the response with --save-response and inspect it"
	case generator.StageSanitize:
		e.ExitCode = ExitSanitize
		if errors.Is(err, project.ErrTooLarge) || errors.Is(err, project.ErrQuotaExceeded) {
			e.Suggestion = "Raise the limits.* settings if the project is legitimately large"
		} else {
			e.Suggestion = "The response tried to write outside the target directory; nothing was written"
		}
	case generator.StageMaterialize:
		e.ExitCode = ExitAborted
		if errors.Is(err, workspace.ErrRootExists) {
			e.Suggestion = "Choose an empty --output directory or pass --overwrite"
		}
		if errors.Is(err, context.Canceled) {
			e.Summary = "generation interrupted before writing files"
		}
	case generator.StageGit, generator.StagePublish:
		e.ExitCode = ExitGeneral
		e.Suggestion = "The files were written; check the GitHub token and owner settings"
	}
	return e
}

func llmExitCode(err error) int {
	var te *llm.TransportError
	if !errors.As(err, &te) {
		return ExitLLMError
	}
	switch te.Status {
	case llm.StatusTimeout:
		return ExitTimeout
	case llm.StatusInvalidCredential:
		return ExitCredential
	default:
		return ExitLLMError
	}
}

func llmSuggestion(err error) string {
	var te *llm.TransportError
	if !errors.As(err, &te) {
		return ""
	}
	switch te.Status {
	case llm.StatusTimeout:
		return "Increase llm.overall_timeout or llm.attempt_timeout"
	case llm.StatusInvalidCredential:
		return "The provider rejected the API key; check it is valid for the selected provider"
	case llm.StatusRateLimited:
		return "The provider kept rate limiting; wait and retry, or check the account quota"
	default:
		return "Check network access to the provider and llm.base_url"
	}
}
