// Package ingest parses uploaded log payloads into flexible records.
// Records are schemaless JSON objects; one malformed line never fails the
// whole upload.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Skipped describes one input line that could not be parsed.
type Skipped struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Batch is the outcome of parsing one upload.
type Batch struct {
	Records []map[string]any
	Skipped []Skipped
}

// Parse reads a log payload and returns the parsed records. The primary
// format is JSONL (one JSON object per line); malformed lines are recorded
// in Skipped and parsing continues. If no line parses as an object, the
// whole payload is retried as a single JSON array of objects or a single
// object.
//
// maxBytes > 0 caps the payload size; exceeding it is an error since a
// truncated log batch would silently skew the analysis.
func Parse(r io.Reader, maxBytes int64) (*Batch, error) {
	var content []byte
	var err error

	if maxBytes > 0 {
		content, err = io.ReadAll(io.LimitReader(r, maxBytes+1))
		if err == nil && int64(len(content)) > maxBytes {
			return nil, fmt.Errorf("log payload exceeds the %d byte limit", maxBytes)
		}
	} else {
		content, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log payload: %w", err)
	}

	text := strings.TrimSpace(string(content))
	batch := &Batch{}
	if text == "" {
		return batch, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, reason := parseObjectLine(line)
		if reason != "" {
			batch.Skipped = append(batch.Skipped, Skipped{Line: lineNum, Reason: reason})
			continue
		}
		batch.Records = append(batch.Records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log payload: %w", err)
	}

	// Nothing parsed line-by-line: the payload may be one JSON document.
	if len(batch.Records) == 0 {
		if records, ok := parseWholeDocument(text); ok {
			batch.Records = records
			batch.Skipped = nil
		}
	}

	return batch, nil
}

// parseObjectLine parses one JSONL line. A non-empty reason means the line
// was skipped.
func parseObjectLine(line string) (map[string]any, string) {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		var anything any
		if json.Unmarshal([]byte(line), &anything) == nil {
			return nil, "not a JSON object"
		}
		return nil, "invalid JSON"
	}
	return record, ""
}

// parseWholeDocument tries the payload as a JSON array of objects or a
// single JSON object.
func parseWholeDocument(text string) ([]map[string]any, bool) {
	var array []map[string]any
	if err := json.Unmarshal([]byte(text), &array); err == nil {
		return array, true
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(text), &object); err == nil {
		return []map[string]any{object}, true
	}

	return nil, false
}
