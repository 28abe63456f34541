// Package dataset reads and writes datasets in JSON Lines form, one record
// per line.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quench-data/quench/domain/record"
)

// maxLineBytes bounds a single JSONL line. Long documents fit; a missing
// newline in a corrupt file does not take the process down.
const maxLineBytes = 64 * 1024 * 1024

// Load reads all records from a JSONL file.
func Load(path string) ([]*record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return records, nil
}

// Read decodes records from JSONL input.
func Read(r io.Reader) ([]*record.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []*record.Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record.FromMap(fields))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Export writes records to a JSONL file, creating parent directories as
// needed.
func Export(path string, records []*record.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Write(f, records); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes records as JSONL output.
func Write(w io.Writer, records []*record.Record) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for i, rec := range records {
		if err := enc.Encode(rec.Fields()); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Flush()
}
