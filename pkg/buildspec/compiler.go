// Package buildspec compiles an exercise's declarative build
// configuration into an immutable specification for build agents.
package buildspec

import (
	"fmt"
	"strings"

	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/utils"
)

// Task kinds a stage may reference.
const (
	TaskKindCompile        = "compile"
	TaskKindTest           = "test"
	TaskKindStaticAnalysis = "static-analysis"
	TaskKindScript         = "script"
)

var knownTaskKinds = map[string]bool{
	TaskKindCompile:        true,
	TaskKindTest:           true,
	TaskKindStaticAnalysis: true,
	TaskKindScript:         true,
}

// ExerciseConfig is the stored build configuration of an exercise.
type ExerciseConfig struct {
	ExerciseID    int64
	ConfigVersion int64
	DockerImage   string
	Stages        []StageConfig
}

type StageConfig struct {
	Name  string
	Tasks []TaskConfig
}

type TaskConfig struct {
	Name    string
	Kind    string
	Command string
}

// CompiledSpec is the immutable result of compiling an exercise
// configuration. A configuration change produces a new spec; in-flight
// jobs keep the one they were dispatched with.
type CompiledSpec struct {
	ExerciseID  int64
	Version     int64
	DockerImage string
	Stages      []protocol.BuildStage
}

// Compile validates the configuration and produces the spec.
func Compile(config ExerciseConfig) (*CompiledSpec, error) {
	if strings.TrimSpace(config.DockerImage) == "" {
		return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
			fmt.Sprintf("exercise %d: empty docker image tag", config.ExerciseID))
	}

	if len(config.Stages) == 0 {
		return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
			fmt.Sprintf("exercise %d: no build stages", config.ExerciseID))
	}

	stages := make([]protocol.BuildStage, 0, len(config.Stages))
	for _, stage := range config.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
				fmt.Sprintf("exercise %d: unnamed stage", config.ExerciseID))
		}

		if len(stage.Tasks) == 0 {
			return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
				fmt.Sprintf("exercise %d: stage %s has no tasks", config.ExerciseID, stage.Name))
		}

		tasks := make([]protocol.BuildTask, 0, len(stage.Tasks))
		for _, task := range stage.Tasks {
			if !knownTaskKinds[task.Kind] {
				return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
					fmt.Sprintf("exercise %d: stage %s references unknown task kind %q",
						config.ExerciseID, stage.Name, task.Kind))
			}
			if task.Kind == TaskKindScript && strings.TrimSpace(task.Command) == "" {
				return nil, utils.NewDetailedError(utils.ErrInvalidConfiguration,
					fmt.Sprintf("exercise %d: script task %s has no command",
						config.ExerciseID, task.Name))
			}
			tasks = append(tasks, protocol.BuildTask{
				Name:    task.Name,
				Kind:    task.Kind,
				Command: task.Command,
			})
		}

		stages = append(stages, protocol.BuildStage{
			Name:  stage.Name,
			Tasks: tasks,
		})
	}

	return &CompiledSpec{
		ExerciseID:  config.ExerciseID,
		Version:     config.ConfigVersion,
		DockerImage: config.DockerImage,
		Stages:      stages,
	}, nil
}
