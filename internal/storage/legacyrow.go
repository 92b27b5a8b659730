/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the dynamic type of a cell read from a legacy table.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is one cell of a legacy row. SQLite columns are dynamically typed, so
// the mapping code works on tagged values instead of guessing Go types per
// column.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
	Blob  []byte
}

func valueFrom(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case int64:
		return Value{Kind: KindInt, Int: v}
	case float64:
		return Value{Kind: KindFloat, Float: v}
	case string:
		return Value{Kind: KindText, Text: v}
	case []byte:
		return Value{Kind: KindBlob, Blob: v}
	case bool:
		if v {
			return Value{Kind: KindInt, Int: 1}
		}
		return Value{Kind: KindInt, Int: 0}
	case time.Time:
		// Drivers decode date-declared columns into time.Time.
		return Value{Kind: KindText, Text: v.UTC().Format(time.RFC3339)}
	default:
		return Value{Kind: KindText, Text: fmt.Sprint(v)}
	}
}

// IsEmpty reports whether the value counts as absent for candidate selection:
// NULL, blank text, or an empty blob.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.Text) == ""
	case KindBlob:
		return len(v.Blob) == 0
	default:
		return false
	}
}

// Arg returns the value as a driver argument, preserving its dynamic type.
func (v Value) Arg() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindText:
		return v.Text
	case KindBlob:
		return v.Blob
	default:
		return nil
	}
}

// AsText renders the value as text. NULL becomes the empty string.
func (v Value) AsText() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindText:
		return v.Text
	case KindBlob:
		return string(v.Blob)
	default:
		return ""
	}
}

// AsInt converts to an integer where that loses nothing: integer values,
// integral floats, and text holding a base-10 integer.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		n := int64(v.Float)
		if float64(n) == v.Float {
			return n, true
		}
		return 0, false
	case KindText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// legacyRow is one row of a legacy table keyed by column name.
type legacyRow map[string]Value

// value returns the named cell if it exists and is non-empty.
func (r legacyRow) value(name string) (Value, bool) {
	v, ok := r[name]
	if !ok || v.IsEmpty() {
		return Value{}, false
	}
	return v, true
}

// firstPresent returns the first candidate column that exists and is
// non-empty. Candidate order is meaning-bearing: earlier names are closer to
// the canonical schema.
func firstPresent(r legacyRow, candidates []string) (Value, bool) {
	for _, name := range candidates {
		if v, ok := r.value(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

// Ordered candidate lists per canonical field. First present-and-non-empty
// wins.
var (
	positiveCandidates = []string{"positive_prompt", "positive", "prompt_text", "prompt", "text"}
	negativeCandidates = []string{"negative_prompt", "negative"}
	workflowCandidates = []string{"workflow_name", "workflow"}
	notesCandidates    = []string{"notes", "description"}
	favoriteCandidates = []string{"is_favorite", "favorite"}
	createdCandidates  = []string{"created_at", "created", "timestamp"}
	updatedCandidates  = []string{"updated_at", "modified_at"}

	resultFilenameCandidates  = []string{"filename", "image", "file"}
	resultSubfolderCandidates = []string{"subfolder", "folder"}
	resultTypeCandidates      = []string{"image_type", "type"}
)

// legacyMarkerColumns are column names that only ever appeared in legacy
// layouts. Any of them present in a managed table forces a rewrite.
var legacyMarkerColumns = []string{
	"text", "prompt", "prompt_text", "positive", "negative", "workflow",
	"timestamp", "created", "modified_at", "description", "image", "file", "folder",
}

// mapPromptRow maps a legacy prompts row onto the canonical column order
// (id, positive_prompt, negative_prompt, workflow_name, category, tags, notes,
// rating, is_favorite, usage_count, created_at, updated_at). Prompt rows are
// never skipped; a missing positive prompt becomes the empty string.
func mapPromptRow(row legacyRow, now string) ([]any, string) {
	createdArg := any(now)
	if v, ok := firstPresent(row, createdCandidates); ok {
		createdArg = v.Arg()
	}
	// updated_at falls back to the resolved created_at, which itself may be now.
	updatedArg := createdArg
	if v, ok := firstPresent(row, updatedCandidates); ok {
		updatedArg = v.Arg()
	}

	positive := ""
	if v, ok := firstPresent(row, positiveCandidates); ok {
		positive = v.AsText()
	}

	args := []any{
		argOrNil(row, []string{"id"}),
		positive,
		argOrNil(row, negativeCandidates),
		argOrNil(row, workflowCandidates),
		argOrNil(row, []string{"category"}),
		argOrNil(row, []string{"tags"}),
		argOrNil(row, notesCandidates),
		numericOrNil(row, []string{"rating"}),
		boolInt(row, favoriteCandidates),
		countInt(row, []string{"usage_count"}),
		createdArg,
		updatedArg,
	}
	return args, ""
}

// mapResultRow maps a legacy prompt_results row onto the canonical column
// order (id, prompt_id, filename, subfolder, image_type, created_at). A row
// whose parent reference does not parse as an integer is skipped with a
// reason; everything else survives.
func mapResultRow(row legacyRow, now string) ([]any, string) {
	pid, ok := row.value("prompt_id")
	if !ok {
		return nil, "missing prompt_id"
	}
	parent, ok := pid.AsInt()
	if !ok {
		return nil, "unparseable prompt_id"
	}

	filename := ""
	if v, ok := firstPresent(row, resultFilenameCandidates); ok {
		filename = v.AsText()
	}
	createdArg := any(now)
	if v, ok := firstPresent(row, createdCandidates); ok {
		createdArg = v.Arg()
	}

	args := []any{
		argOrNil(row, []string{"id"}),
		parent,
		filename,
		argOrNil(row, resultSubfolderCandidates),
		argOrNil(row, resultTypeCandidates),
		createdArg,
	}
	return args, ""
}

// argOrNil passes the first present candidate through untouched, or NULL.
func argOrNil(row legacyRow, candidates []string) any {
	if v, ok := firstPresent(row, candidates); ok {
		return v.Arg()
	}
	return nil
}

// numericOrNil keeps numeric-ish values and drops the rest to NULL.
func numericOrNil(row legacyRow, candidates []string) any {
	v, ok := firstPresent(row, candidates)
	if !ok {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindText:
		s := strings.TrimSpace(v.Text)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return nil
}

// boolInt normalizes truthy legacy flags to 0/1, defaulting to 0.
func boolInt(row legacyRow, candidates []string) int64 {
	v, ok := firstPresent(row, candidates)
	if !ok {
		return 0
	}
	switch v.Kind {
	case KindInt:
		if v.Int != 0 {
			return 1
		}
	case KindFloat:
		if v.Float != 0 {
			return 1
		}
	case KindText:
		s := strings.TrimSpace(v.Text)
		if b, err := strconv.ParseBool(s); err == nil && b {
			return 1
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n != 0 {
			return 1
		}
	}
	return 0
}

// countInt keeps non-negative integer counters, defaulting to 0.
func countInt(row legacyRow, candidates []string) int64 {
	if v, ok := firstPresent(row, candidates); ok {
		if n, ok := v.AsInt(); ok && n > 0 {
			return n
		}
	}
	return 0
}
