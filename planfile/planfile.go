// Package planfile loads declarative plan documents from YAML and binds
// them against a registry of named task handlers.
//
// The document schema mirrors the engine's plan model: a plan id, a
// strategy, and a task list where each task names the handler that
// supplies its executable body. Higher layers register handlers once and
// author plans as data.
package planfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	engine "github.com/Sdkwork-Cloud/sdkwork-agent-sub002"
)

// Duration is a time.Duration that decodes from YAML strings like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// RetryDocument is the on-disk form of an engine.RetryPolicy.
type RetryDocument struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	BaseDelay       Duration `yaml:"base_delay,omitempty"`
	Backoff         string   `yaml:"backoff,omitempty"`
	MaxDelay        Duration `yaml:"max_delay,omitempty"`
	RetryableErrors []string `yaml:"retryable_errors,omitempty"`
}

// TaskDocument is the on-disk form of an engine.Task. Handler names the
// registered handler that supplies the task's body.
type TaskDocument struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name,omitempty"`
	Handler   string         `yaml:"handler"`
	Timeout   Duration       `yaml:"timeout,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Retry     *RetryDocument `yaml:"retry,omitempty"`
}

// Document is a declarative plan definition.
type Document struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name,omitempty"`
	Strategy      string         `yaml:"strategy"`
	GlobalTimeout Duration       `yaml:"global_timeout,omitempty"`
	Tasks         []TaskDocument `yaml:"tasks"`
}

// Parse decodes and validates a single plan document payload.
func Parse(data []byte) (Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, fmt.Errorf("planfile: document payload is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("planfile: decode document: %w", err)
	}
	doc = doc.normalized()
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// LoadFile reads a YAML file from disk and returns the parsed document.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("planfile: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("planfile: %s: %w", filepath.Clean(path), err)
	}
	return doc, nil
}

// normalized returns a copy with whitespace trimmed off identifiers.
func (d Document) normalized() Document {
	clone := d
	clone.ID = strings.TrimSpace(d.ID)
	clone.Name = strings.TrimSpace(d.Name)
	clone.Strategy = strings.TrimSpace(strings.ToLower(d.Strategy))
	if len(d.Tasks) > 0 {
		clone.Tasks = make([]TaskDocument, len(d.Tasks))
		for i, t := range d.Tasks {
			t.ID = strings.TrimSpace(t.ID)
			t.Name = strings.TrimSpace(t.Name)
			t.Handler = strings.TrimSpace(t.Handler)
			if len(t.DependsOn) > 0 {
				deps := make([]string, 0, len(t.DependsOn))
				for _, dep := range t.DependsOn {
					if trimmed := strings.TrimSpace(dep); trimmed != "" {
						deps = append(deps, trimmed)
					}
				}
				t.DependsOn = deps
			}
			clone.Tasks[i] = t
		}
	}
	return clone
}

// Validate checks the document's own schema. Graph-level problems (cycles,
// unknown dependency IDs) are caught later by engine plan validation.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("planfile: plan id is required")
	}
	if !engine.Strategy(d.Strategy).Valid() {
		return fmt.Errorf("planfile: plan %q: unknown strategy %q", d.ID, d.Strategy)
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("planfile: plan %q: no tasks", d.ID)
	}
	for i, t := range d.Tasks {
		if t.ID == "" {
			return fmt.Errorf("planfile: plan %q: task at index %d has no id", d.ID, i)
		}
		if t.Handler == "" {
			return fmt.Errorf("planfile: plan %q: task %q has no handler", d.ID, t.ID)
		}
		if t.Retry != nil && t.Retry.Backoff != "" {
			switch engine.BackoffKind(t.Retry.Backoff) {
			case engine.BackoffFixed, engine.BackoffLinear, engine.BackoffExponential, engine.BackoffJitter:
			default:
				return fmt.Errorf("planfile: plan %q: task %q: unknown backoff %q", d.ID, t.ID, t.Retry.Backoff)
			}
		}
	}
	return nil
}

// Build resolves every task's handler against the registry and returns an
// executable, validated engine plan.
func (d Document) Build(reg *Registry) (*engine.Plan, error) {
	if reg == nil {
		return nil, fmt.Errorf("planfile: nil registry")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	plan := &engine.Plan{
		ID:            d.ID,
		Name:          d.Name,
		Strategy:      engine.Strategy(d.Strategy),
		GlobalTimeout: time.Duration(d.GlobalTimeout),
		Tasks:         make([]engine.Task, 0, len(d.Tasks)),
	}
	for _, td := range d.Tasks {
		h, ok := reg.Lookup(td.Handler)
		if !ok {
			return nil, fmt.Errorf("planfile: plan %q: task %q: unknown handler %q", d.ID, td.ID, td.Handler)
		}
		task := engine.Task{
			ID:         td.ID,
			Name:       td.Name,
			Execute:    h.Execute,
			Timeout:    time.Duration(td.Timeout),
			DependsOn:  td.DependsOn,
			Condition:  h.Condition,
			Compensate: h.Compensate,
		}
		if td.Retry != nil {
			task.Retry = &engine.RetryPolicy{
				MaxAttempts:     td.Retry.MaxAttempts,
				BaseDelay:       time.Duration(td.Retry.BaseDelay),
				Backoff:         engine.BackoffKind(td.Retry.Backoff),
				MaxDelay:        time.Duration(td.Retry.MaxDelay),
				RetryableErrors: td.Retry.RetryableErrors,
			}
		}
		plan.Tasks = append(plan.Tasks, task)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}
