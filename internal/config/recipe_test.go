package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecipe = `
project_name: qa-refine
dataset_path: data/input.jsonl
export_path: out/output.jsonl
np: 4
trace_db_url: sqlite:///trace.db
process:
  - whitespace_normalization_mapper
  - text_length_filter:
      text_key: response
      min_len: 10
  - optimize_qa_mapper:
      model: Qwen/Qwen2.5-7B-Instruct
      enable_vllm: true
      sampling_params:
        temperature: 0.9
        top_p: 0.95
`

func TestParseRecipe(t *testing.T) {
	r, err := ParseRecipe([]byte(sampleRecipe))
	require.NoError(t, err)

	assert.Equal(t, "qa-refine", r.ProjectName)
	assert.Equal(t, "data/input.jsonl", r.DatasetPath)
	assert.Equal(t, 4, r.NumProc)
	assert.Equal(t, "sqlite:///trace.db", r.TraceDBURL)
	require.Len(t, r.Process, 3)

	assert.Equal(t, "whitespace_normalization_mapper", r.Process[0].Name)
	assert.Empty(t, r.Process[0].Params)

	assert.Equal(t, "text_length_filter", r.Process[1].Name)
	assert.Equal(t, "response", r.Process[1].Params["text_key"])

	assert.Equal(t, "optimize_qa_mapper", r.Process[2].Name)
	assert.Equal(t, true, r.Process[2].Params["enable_vllm"])
	sampling, ok := r.Process[2].Params["sampling_params"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.9, sampling["temperature"].(float64), 1e-9)
}

func TestParseRecipe_Validation(t *testing.T) {
	_, err := ParseRecipe([]byte("export_path: out.jsonl\nprocess: [x]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset_path")

	_, err = ParseRecipe([]byte("dataset_path: in.jsonl\nprocess: [x]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export_path")

	_, err = ParseRecipe([]byte("dataset_path: in.jsonl\nexport_path: out.jsonl"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process")
}

func TestParseRecipe_DefaultNumProc(t *testing.T) {
	r, err := ParseRecipe([]byte("dataset_path: in.jsonl\nexport_path: out.jsonl\nprocess: [noop]"))
	require.NoError(t, err)
	assert.Equal(t, DefaultNumProc, r.NumProc)
}

func TestParseRecipe_RejectsMultiKeyOpEntry(t *testing.T) {
	bad := `
dataset_path: in.jsonl
export_path: out.jsonl
process:
  - a: {}
    b: {}
`
	_, err := ParseRecipe([]byte(bad))
	require.Error(t, err)
}

func TestLoadRecipe_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRecipe), 0o644))

	r, err := LoadRecipe(path)
	require.NoError(t, err)
	assert.Equal(t, "out/output.jsonl", r.ExportPath)

	_, err = LoadRecipe(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
