package cli

import (
	"github.com/Jurkyy/project-pilot/internal/generator"
	"github.com/Jurkyy/project-pilot/internal/github"
	"github.com/Jurkyy/project-pilot/internal/llm"
	"github.com/Jurkyy/project-pilot/internal/output"
	"github.com/Jurkyy/project-pilot/internal/workspace"
)

// pipelineOptions are the per-command switches on top of the loaded config
type pipelineOptions struct {
	overwrite bool
	gitInit   bool
	publish   bool
	private   bool
}

// newGenerator wires the LLM transport, materializer and optional GitHub
// publisher from the loaded config
func newGenerator(opts pipelineOptions) (*generator.Generator, error) {
	transport, err := llm.NewTransport(cfg.Provider(), llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, &output.CLIError{Summary: err.Error(), ExitCode: output.ExitConfigError}
	}
	logger.Debug("llm transport ready", "provider", transport.Name(), "model", transport.Model())

	adapter := llm.NewAdapter(transport, llm.AdapterOptions{
		Policy:         cfg.LLM.Retry,
		AttemptTimeout: cfg.LLM.AttemptTimeout,
		OverallTimeout: cfg.LLM.OverallTimeout,
		Logger:         logger,
	})

	materializer := workspace.New(workspace.Options{Overwrite: opts.overwrite}, logger)

	var publisher generator.Publisher
	if opts.publish {
		if cfg.GitHub.Token == "" {
			return nil, &output.CLIError{
				Summary:    "publishing needs a GitHub token",
				Suggestion: "Set GITHUB_TOKEN or github.token in the config file",
				ExitCode:   output.ExitConfigError,
			}
		}
		publisher = github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner)
	}

	return generator.NewGenerator(adapter, materializer, publisher, generator.Options{
		Provider: cfg.Provider(),
		Limits:   cfg.Limits,
		GitInit:  opts.gitInit,
		Publish:  opts.publish,
		Private:  opts.private,
		Author: github.Author{
			Name:  cfg.GitHub.AuthorName,
			Email: cfg.GitHub.AuthorEmail,
		},
	}, logger), nil
}
