package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/foxseedlab/streameval/internal/pipeline"
	"gopkg.in/yaml.v3"
)

type pipelineFile struct {
	Stages []pipelineStage `yaml:"stages"`
}

type pipelineStage struct {
	TaskType string         `yaml:"taskType"`
	Config   map[string]any `yaml:"config"`
}

// LoadPipeline reads a YAML task sequence of the form
//
//	stages:
//	  - taskType: asr
//	    config: {language: {sourceLanguage: hi}, samplingRate: 16000}
func LoadPipeline(path string) (*pipeline.TaskSequence, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return ParsePipeline(b)
}

func ParsePipeline(b []byte) (*pipeline.TaskSequence, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var raw pipelineFile
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode pipeline yaml: %w", err)
	}
	stages := make([]pipeline.Stage, 0, len(raw.Stages))
	for _, st := range raw.Stages {
		stages = append(stages, pipeline.Stage{
			TaskType: pipeline.TaskType(st.TaskType),
			Config:   st.Config,
		})
	}
	return pipeline.NewTaskSequence(stages)
}
