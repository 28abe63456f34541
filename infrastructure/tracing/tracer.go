// Package tracing persists per-op field changes so a refinement run can be
// audited afterwards: which op touched which record, and how.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/quench-data/quench/domain/record"
	"github.com/quench-data/quench/internal/database"
)

// FieldChange is one persisted trace row: an op changed one field of one
// record.
type FieldChange struct {
	ID        uint   `gorm:"primaryKey"`
	RunName   string `gorm:"index"`
	OpName    string `gorm:"index"`
	RecordIdx int
	Field     string
	Before    string
	After     string
	CreatedAt time.Time
}

// TableName sets the trace table name.
func (FieldChange) TableName() string { return "field_changes" }

// Tracer records field changes into a database.
type Tracer struct {
	db      database.Database
	runName string
}

// NewTracer opens the trace database and migrates its schema.
func NewTracer(ctx context.Context, url, runName string) (*Tracer, error) {
	db, err := database.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if err := db.AutoMigrate(&FieldChange{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate trace schema: %w", err)
	}
	return &Tracer{db: db, runName: runName}, nil
}

// Close closes the trace database.
func (t *Tracer) Close() error {
	return t.db.Close()
}

// TraceMapper diffs a record against its state before an op ran and
// persists one row per changed string field.
func (t *Tracer) TraceMapper(ctx context.Context, opName string, idx int, before map[string]any, after *record.Record) error {
	var changes []FieldChange
	for field, prev := range before {
		prevText, ok := prev.(string)
		if !ok {
			continue
		}
		nextText, err := after.String(field)
		if err != nil || nextText == prevText {
			continue
		}
		changes = append(changes, FieldChange{
			RunName:   t.runName,
			OpName:    opName,
			RecordIdx: idx,
			Field:     field,
			Before:    prevText,
			After:     nextText,
		})
	}
	if len(changes) == 0 {
		return nil
	}

	if err := t.db.Session(ctx).Create(&changes).Error; err != nil {
		return fmt.Errorf("persist trace: %w", err)
	}
	return nil
}

// TraceFilter persists a row for a record dropped by a filter.
func (t *Tracer) TraceFilter(ctx context.Context, opName string, idx int) error {
	change := FieldChange{
		RunName:   t.runName,
		OpName:    opName,
		RecordIdx: idx,
		Field:     "",
		Before:    "kept",
		After:     "dropped",
	}
	if err := t.db.Session(ctx).Create(&change).Error; err != nil {
		return fmt.Errorf("persist trace: %w", err)
	}
	return nil
}

// Changes returns all persisted rows for an op, ordered by record index.
func (t *Tracer) Changes(ctx context.Context, opName string) ([]FieldChange, error) {
	var changes []FieldChange
	err := t.db.Session(ctx).
		Where("run_name = ? AND op_name = ?", t.runName, opName).
		Order("record_idx").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	return changes, nil
}
