package task

import (
	"context"
	"path/filepath"

	"github.com/Jurkyy/project-pilot/internal/generator"
	"github.com/Jurkyy/project-pilot/internal/project"
)

// Pipeline is the part of the generator a task runs
type Pipeline interface {
	Generate(ctx context.Context, req project.Request, apiKey string, progress generator.ProgressFunc) (*generator.Result, error)
}

var stageStatus = map[generator.Stage]Status{
	generator.StageCredential:  StatusValidating,
	generator.StageCompose:     StatusValidating,
	generator.StageLLM:         StatusGenerating,
	generator.StageParse:       StatusParsing,
	generator.StageSanitize:    StatusParsing,
	generator.StageMaterialize: StatusWriting,
	generator.StageGit:         StatusCommitting,
	generator.StagePublish:     StatusPushing,
}

// NewGeneratorRunner runs each task through pipeline, materializing into
// its own directory under workspaceDir
func NewGeneratorRunner(m *Manager, pipeline Pipeline, workspaceDir, apiKey string) Runner {
	return func(ctx context.Context, t Task) (Outcome, error) {
		req := project.Request{
			Description: t.Description,
			Name:        t.Name,
			Language:    t.Language,
			TargetRoot:  filepath.Join(workspaceDir, t.ID),
		}
		progress := func(stage generator.Stage, message string) {
			status, ok := stageStatus[stage]
			if !ok {
				status = StatusGenerating
			}
			_ = m.UpdateTask(t.ID, status, message)
		}

		res, err := pipeline.Generate(ctx, req, apiKey, progress)
		if err != nil {
			return Outcome{}, err
		}

		o := Outcome{Root: res.Report.Root, Files: res.Report.Written, RepoURL: res.RepoURL}
		for _, s := range res.Report.Skipped {
			o.Skipped = append(o.Skipped, s.Path+": "+s.Reason)
		}
		return o, nil
	}
}
