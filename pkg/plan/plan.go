// Package plan loads pipeline definitions from YAML files. The plan file is
// the operator-facing surface: it gets strict decoding, field validation,
// and defaulting before anything reaches the engine.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/runbook/runbook/pkg/engine"
)

// task is the YAML shape of one pipeline entry. Required is a pointer so an
// omitted field defaults to true: tasks are required unless said otherwise.
type task struct {
	ID             string             `yaml:"id" validate:"required"`
	Kind           engine.TaskKind    `yaml:"kind" validate:"required,oneof=playbook shell build"`
	Target         string             `yaml:"target"`
	Path           string             `yaml:"path" validate:"required"`
	Args           []string           `yaml:"args"`
	Required       *bool              `yaml:"required"`
	TimeoutSeconds int                `yaml:"timeout_seconds" validate:"gte=0"`
	OnFailure      engine.FailureMode `yaml:"on_failure" validate:"omitempty,oneof=fail continue retry"`
	Retries        int                `yaml:"retries" validate:"gte=0"`
}

// file is the YAML shape of a plan file.
type file struct {
	Name  string `yaml:"name" validate:"required"`
	Tasks []task `yaml:"tasks" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Load reads and validates a plan file.
func Load(path string) (engine.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.Pipeline{}, engine.NewConfigError(
			fmt.Sprintf("opening plan file %s", path), err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return engine.Pipeline{}, err
	}
	return p, nil
}

// Parse decodes a plan from a reader. Unknown fields are rejected so typos
// in a plan file fail loudly instead of silently dropping settings.
func Parse(r io.Reader) (engine.Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return engine.Pipeline{}, engine.NewConfigError("reading plan", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil {
		return engine.Pipeline{}, engine.NewConfigError("plan is not valid YAML", err)
	}

	if err := validate.Struct(&doc); err != nil {
		return engine.Pipeline{}, engine.NewConfigError(
			"plan validation failed", err).WithCode(engine.CodeInvalidDescriptor)
	}

	p := engine.Pipeline{Name: doc.Name}
	seen := make(map[string]bool, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if seen[t.ID] {
			return engine.Pipeline{}, engine.NewConfigError(
				"duplicate task id: "+t.ID, nil).
				WithCode(engine.CodeInvalidDescriptor).WithTask(t.ID)
		}
		seen[t.ID] = true

		d := t.descriptor()
		if err := d.Validate(); err != nil {
			return engine.Pipeline{}, err
		}
		p.Tasks = append(p.Tasks, d)
	}

	return p, nil
}

// descriptor converts a plan entry to an engine descriptor, applying the
// plan-level defaults: required unless stated, fail on failure unless
// stated, and one retry when retry mode names no bound.
func (t task) descriptor() engine.Descriptor {
	required := true
	if t.Required != nil {
		required = *t.Required
	}

	onFailure := t.OnFailure
	if onFailure == "" {
		onFailure = engine.FailureFail
	}

	retries := t.Retries
	if onFailure == engine.FailureRetry && retries == 0 {
		retries = 1
	}

	return engine.Descriptor{
		ID:             t.ID,
		Kind:           t.Kind,
		Target:         t.Target,
		Path:           t.Path,
		Args:           t.Args,
		Required:       required,
		TimeoutSeconds: t.TimeoutSeconds,
		OnFailure:      onFailure,
		Retries:        retries,
	}
}

// Validate checks a plan file without building a pipeline, reporting every
// problem it can find. Used by the validate command.
func Validate(path string) []error {
	_, err := Load(path)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]error, len(verrs))
		for i, ve := range verrs {
			out[i] = ve
		}
		return out
	}
	return []error{err}
}
