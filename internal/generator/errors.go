package generator

import "fmt"

// Stage names a pipeline step
type Stage string

const (
	StageCredential  Stage = "credential"
	StageCompose     Stage = "compose"
	StageLLM         Stage = "llm"
	StageParse       Stage = "parse"
	StageSanitize    Stage = "sanitize"
	StageMaterialize Stage = "materialize"
	StageGit         Stage = "git"
	StagePublish     Stage = "publish"
)

// StageError is a fatal pipeline error tagged with the stage it came from
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
