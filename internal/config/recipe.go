package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OpSpec is one entry of a recipe's process list: an op name with its
// parameters. In YAML it is a single-key mapping:
//
//   - optimize_qa_mapper:
//     enable_vllm: true
//
// A bare string selects the op with default parameters.
type OpSpec struct {
	Name   string
	Params map[string]any
}

// UnmarshalYAML accepts both the single-key mapping form and the bare
// string form.
func (s *OpSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		s.Name = name
		s.Params = map[string]any{}
		return nil
	}

	var m map[string]map[string]any
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("op entry must be a name or a single-key mapping: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("op entry must have exactly one key, got %d", len(m))
	}
	for name, params := range m {
		s.Name = name
		if params == nil {
			params = map[string]any{}
		}
		s.Params = params
	}
	return nil
}

// Recipe describes one refinement run: where the dataset lives, where to
// export it, how many workers to use and which ops to apply in order.
type Recipe struct {
	// ProjectName labels the run in logs and traces.
	ProjectName string `yaml:"project_name"`

	// DatasetPath is the input JSONL file.
	DatasetPath string `yaml:"dataset_path"`

	// ExportPath is the output JSONL file.
	ExportPath string `yaml:"export_path"`

	// NumProc is the worker count. Ops that claim a whole accelerator
	// force it down to one at run time.
	NumProc int `yaml:"np"`

	// TraceDBURL enables the field-change tracer when set
	// (sqlite:///path or postgres://...).
	TraceDBURL string `yaml:"trace_db_url"`

	// Process lists the ops to apply, in order.
	Process []OpSpec `yaml:"process"`
}

// LoadRecipe reads and validates a YAML recipe file.
func LoadRecipe(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("read recipe: %w", err)
	}
	return ParseRecipe(data)
}

// ParseRecipe decodes and validates recipe YAML.
func ParseRecipe(data []byte) (Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("parse recipe: %w", err)
	}
	if r.DatasetPath == "" {
		return Recipe{}, fmt.Errorf("recipe: dataset_path is required")
	}
	if r.ExportPath == "" {
		return Recipe{}, fmt.Errorf("recipe: export_path is required")
	}
	if len(r.Process) == 0 {
		return Recipe{}, fmt.Errorf("recipe: process list is empty")
	}
	if r.NumProc <= 0 {
		r.NumProc = DefaultNumProc
	}
	return r, nil
}
