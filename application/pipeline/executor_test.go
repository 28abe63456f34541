package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
	"github.com/quench-data/quench/infrastructure/dataset"
	"github.com/quench-data/quench/infrastructure/tracing"
	"github.com/quench-data/quench/internal/config"
	"github.com/quench-data/quench/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperMapper uppercases one field and records the ranks it ran on.
type upperMapper struct {
	key       string
	exclusive bool
	err       error

	mu    sync.Mutex
	ranks []int
}

func (m *upperMapper) Name() string { return "upper_mapper" }

func (m *upperMapper) RequiresExclusiveAccelerator() bool { return m.exclusive }

func (m *upperMapper) ProcessSingle(_ context.Context, rec *record.Record, rank int) error {
	m.mu.Lock()
	m.ranks = append(m.ranks, rank)
	m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	text, err := rec.String(m.key)
	if err != nil {
		return err
	}
	rec.Set(m.key, strings.ToUpper(text))
	return nil
}

// shortFilter drops records whose field is shorter than min.
type shortFilter struct {
	key string
	min int
}

func (f *shortFilter) Name() string { return "short_filter" }

func (f *shortFilter) Keep(_ context.Context, rec *record.Record, _ int) (bool, error) {
	text, err := rec.String(f.key)
	if err != nil {
		return false, err
	}
	return len(text) >= f.min, nil
}

func writeDataset(t *testing.T, records []*record.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, dataset.Export(path, records))
	return path
}

func testRecipe(t *testing.T, inPath string, numProc int, ops ...config.OpSpec) config.Recipe {
	t.Helper()
	return config.Recipe{
		ProjectName: "test",
		DatasetPath: inPath,
		ExportPath:  filepath.Join(t.TempDir(), "out.jsonl"),
		NumProc:     numProc,
		Process:     ops,
	}
}

func newRegistry(t *testing.T, ops ...op.Op) *op.Registry {
	t.Helper()
	registry := op.NewRegistry()
	for _, o := range ops {
		o := o
		require.NoError(t, registry.Register(o.Name(), func(op.Params) (op.Op, error) {
			return o, nil
		}))
	}
	return registry
}

func TestExecutor_RunMapperAndFilter(t *testing.T) {
	records := []*record.Record{
		record.FromMap(map[string]any{"text": "keep me around"}),
		record.FromMap(map[string]any{"text": "hi"}),
		record.FromMap(map[string]any{"text": "also long enough"}),
	}
	inPath := writeDataset(t, records)

	mapper := &upperMapper{key: "text"}
	filter := &shortFilter{key: "text", min: 5}
	registry := newRegistry(t, mapper, filter)

	recipe := testRecipe(t, inPath, 2,
		config.OpSpec{Name: "upper_mapper", Params: map[string]any{}},
		config.OpSpec{Name: "short_filter", Params: map[string]any{}},
	)

	e := NewExecutor(recipe, registry, log.NewWithWriter(os.Stderr, log.FormatPretty, "error"))
	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, 2, summary.Exported)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, 2, summary.OpsRun)

	out, err := dataset.Load(recipe.ExportPath)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first, err := out[0].String("text")
	require.NoError(t, err)
	assert.Equal(t, "KEEP ME AROUND", first, "order preserved, mapper applied")
}

func TestExecutor_ExclusiveOpForcesSingleWorker(t *testing.T) {
	var records []*record.Record
	for i := 0; i < 10; i++ {
		records = append(records, record.FromMap(map[string]any{"text": "row"}))
	}
	inPath := writeDataset(t, records)

	mapper := &upperMapper{key: "text", exclusive: true}
	registry := newRegistry(t, mapper)
	recipe := testRecipe(t, inPath, 8, config.OpSpec{Name: "upper_mapper"})

	e := NewExecutor(recipe, registry, log.NewWithWriter(os.Stderr, log.FormatPretty, "error"))
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, mapper.ranks, 10)
	for _, rank := range mapper.ranks {
		assert.Equal(t, 0, rank, "exclusive op runs on a single worker")
	}
}

func TestExecutor_OpErrorAborts(t *testing.T) {
	inPath := writeDataset(t, []*record.Record{
		record.FromMap(map[string]any{"text": "x"}),
	})

	wantErr := errors.New("model down")
	mapper := &upperMapper{key: "text", err: wantErr}
	registry := newRegistry(t, mapper)
	recipe := testRecipe(t, inPath, 1, config.OpSpec{Name: "upper_mapper"})

	e := NewExecutor(recipe, registry, log.NewWithWriter(os.Stderr, log.FormatPretty, "error"))
	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, wantErr)

	_, statErr := os.Stat(recipe.ExportPath)
	assert.True(t, os.IsNotExist(statErr), "no export on failure")
}

func TestExecutor_UnknownOp(t *testing.T) {
	inPath := writeDataset(t, []*record.Record{
		record.FromMap(map[string]any{"text": "x"}),
	})
	recipe := testRecipe(t, inPath, 1, config.OpSpec{Name: "nope"})

	e := NewExecutor(recipe, op.NewRegistry(), log.NewWithWriter(os.Stderr, log.FormatPretty, "error"))
	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, op.ErrUnknownOp)
}

func TestExecutor_Tracing(t *testing.T) {
	inPath := writeDataset(t, []*record.Record{
		record.FromMap(map[string]any{"text": "change me"}),
		record.FromMap(map[string]any{"text": "no"}),
	})

	mapper := &upperMapper{key: "text"}
	filter := &shortFilter{key: "text", min: 5}
	registry := newRegistry(t, mapper, filter)
	recipe := testRecipe(t, inPath, 1,
		config.OpSpec{Name: "upper_mapper"},
		config.OpSpec{Name: "short_filter"},
	)

	ctx := context.Background()
	tracer, err := tracing.NewTracer(ctx, "sqlite:///"+filepath.Join(t.TempDir(), "trace.db"), "test")
	require.NoError(t, err)
	defer func() { _ = tracer.Close() }()

	e := NewExecutor(recipe, registry, log.NewWithWriter(os.Stderr, log.FormatPretty, "error"), WithTracer(tracer))
	_, err = e.Run(ctx)
	require.NoError(t, err)

	mapped, err := tracer.Changes(ctx, "upper_mapper")
	require.NoError(t, err)
	require.Len(t, mapped, 2)
	assert.Equal(t, "change me", mapped[0].Before)
	assert.Equal(t, "CHANGE ME", mapped[0].After)

	dropped, err := tracer.Changes(ctx, "short_filter")
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, 1, dropped[0].RecordIdx)
}
