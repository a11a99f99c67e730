package buildspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edulab/buildci/pkg/utils"
)

func validConfig() ExerciseConfig {
	return ExerciseConfig{
		ExerciseID:    42,
		ConfigVersion: 1,
		DockerImage:   "eclipse-temurin:21",
		Stages: []StageConfig{
			{
				Name: "build",
				Tasks: []TaskConfig{
					{Name: "compile", Kind: TaskKindCompile},
					{Name: "test", Kind: TaskKindTest},
				},
			},
			{
				Name: "analysis",
				Tasks: []TaskConfig{
					{Name: "spotbugs", Kind: TaskKindStaticAnalysis},
				},
			},
		},
	}
}

func TestCompile(t *testing.T) {
	spec, err := Compile(validConfig())
	assert.NoError(t, err)
	assert.Equal(t, int64(42), spec.ExerciseID)
	assert.Equal(t, int64(1), spec.Version)
	assert.Equal(t, "eclipse-temurin:21", spec.DockerImage)
	assert.Len(t, spec.Stages, 2)
	assert.Equal(t, "build", spec.Stages[0].Name)
	assert.Len(t, spec.Stages[0].Tasks, 2)
}

func TestCompileRejectsEmptyImage(t *testing.T) {
	config := validConfig()
	config.DockerImage = "  "

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}

func TestCompileRejectsNoStages(t *testing.T) {
	config := validConfig()
	config.Stages = nil

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}

func TestCompileRejectsUnnamedStage(t *testing.T) {
	config := validConfig()
	config.Stages[0].Name = ""

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}

func TestCompileRejectsEmptyStage(t *testing.T) {
	config := validConfig()
	config.Stages[1].Tasks = nil

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}

func TestCompileRejectsUnknownTaskKind(t *testing.T) {
	config := validConfig()
	config.Stages[0].Tasks[0].Kind = "deploy"

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}

func TestCompileRejectsScriptWithoutCommand(t *testing.T) {
	config := validConfig()
	config.Stages[0].Tasks = append(config.Stages[0].Tasks, TaskConfig{
		Name: "setup",
		Kind: TaskKindScript,
	})

	_, err := Compile(config)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfiguration))
}
