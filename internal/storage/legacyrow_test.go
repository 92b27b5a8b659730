/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"testing"
	"time"
)

const testNow = "2025-06-01T12:00:00Z"

func text(s string) Value { return Value{Kind: KindText, Text: s} }
func integer(n int64) Value { return Value{Kind: KindInt, Int: n} }

func TestMapPromptRowPrefersCanonicalColumn(t *testing.T) {
	row := legacyRow{
		"positive_prompt": text("canonical"),
		"text":            text("oldest layout"),
	}
	args, skip := mapPromptRow(row, testNow)
	if skip != "" {
		t.Fatalf("unexpected skip: %q", skip)
	}
	if got := args[1]; got != "canonical" {
		t.Fatalf("positive_prompt = %v, want canonical", got)
	}
}

func TestMapPromptRowFallsThroughCandidates(t *testing.T) {
	// Blank canonical column does not shadow an older one with content.
	row := legacyRow{
		"positive_prompt": text("   "),
		"prompt_text":     text("from prompt_text"),
	}
	args, _ := mapPromptRow(row, testNow)
	if got := args[1]; got != "from prompt_text" {
		t.Fatalf("positive_prompt = %v, want from prompt_text", got)
	}
}

func TestMapPromptRowEmptyRowDefaults(t *testing.T) {
	args, skip := mapPromptRow(legacyRow{}, testNow)
	if skip != "" {
		t.Fatalf("empty prompt rows must survive, got skip %q", skip)
	}
	if args[1] != "" {
		t.Fatalf("positive_prompt = %v, want empty string", args[1])
	}
	if args[8] != int64(0) {
		t.Fatalf("is_favorite = %v, want 0", args[8])
	}
	if args[9] != int64(0) {
		t.Fatalf("usage_count = %v, want 0", args[9])
	}
	if args[10] != testNow || args[11] != testNow {
		t.Fatalf("timestamps = %v / %v, want both %s", args[10], args[11], testNow)
	}
}

func TestMapPromptRowUpdatedFallsBackToCreated(t *testing.T) {
	row := legacyRow{"created": text("2024-01-01T00:00:00Z")}
	args, _ := mapPromptRow(row, testNow)
	if args[10] != "2024-01-01T00:00:00Z" {
		t.Fatalf("created_at = %v", args[10])
	}
	if args[11] != "2024-01-01T00:00:00Z" {
		t.Fatalf("updated_at = %v, want the resolved created_at", args[11])
	}
}

func TestMapPromptRowFavoriteCoercion(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want int64
	}{
		{"int one", integer(1), 1},
		{"int big", integer(5), 1},
		{"text true", text("true"), 1},
		{"text zero", text("0"), 0},
		{"text junk", text("maybe"), 0},
		{"float", Value{Kind: KindFloat, Float: 1.0}, 1},
	}
	for _, tc := range cases {
		args, _ := mapPromptRow(legacyRow{"favorite": tc.v}, testNow)
		if args[8] != tc.want {
			t.Fatalf("%s: is_favorite = %v, want %d", tc.name, args[8], tc.want)
		}
	}
}

func TestMapPromptRowRatingNormalization(t *testing.T) {
	args, _ := mapPromptRow(legacyRow{"rating": text("4")}, testNow)
	if args[7] != int64(4) {
		t.Fatalf("rating = %v, want 4", args[7])
	}
	args, _ = mapPromptRow(legacyRow{"rating": text("excellent")}, testNow)
	if args[7] != nil {
		t.Fatalf("rating = %v, want NULL for non-numeric text", args[7])
	}
	args, _ = mapPromptRow(legacyRow{"rating": Value{Kind: KindFloat, Float: 3.5}}, testNow)
	if args[7] != 3.5 {
		t.Fatalf("rating = %v, want 3.5", args[7])
	}
}

func TestMapResultRowParentReference(t *testing.T) {
	if _, skip := mapResultRow(legacyRow{"filename": text("a.png")}, testNow); skip != "missing prompt_id" {
		t.Fatalf("skip = %q, want missing prompt_id", skip)
	}
	if _, skip := mapResultRow(legacyRow{"prompt_id": text("abc")}, testNow); skip != "unparseable prompt_id" {
		t.Fatalf("skip = %q, want unparseable prompt_id", skip)
	}
	args, skip := mapResultRow(legacyRow{"prompt_id": text(" 7 "), "image": text("a.png")}, testNow)
	if skip != "" {
		t.Fatalf("unexpected skip: %q", skip)
	}
	if args[1] != int64(7) {
		t.Fatalf("prompt_id = %v, want 7", args[1])
	}
	if args[2] != "a.png" {
		t.Fatalf("filename = %v, want a.png", args[2])
	}
}

func TestValueEmptiness(t *testing.T) {
	if !(Value{Kind: KindNull}).IsEmpty() {
		t.Fatal("NULL should be empty")
	}
	if !text("  \t").IsEmpty() {
		t.Fatal("blank text should be empty")
	}
	if (integer(0)).IsEmpty() {
		t.Fatal("integer zero is a value, not absence")
	}
	if !(Value{Kind: KindBlob}).IsEmpty() {
		t.Fatal("empty blob should be empty")
	}
}

func TestValueFromBoolAndTime(t *testing.T) {
	if v := valueFrom(true); v.Kind != KindInt || v.Int != 1 {
		t.Fatalf("valueFrom(true) = %+v", v)
	}
	if v := valueFrom(false); v.Kind != KindInt || v.Int != 0 {
		t.Fatalf("valueFrom(false) = %+v", v)
	}
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if v := valueFrom(ts); v.Kind != KindText || v.Text != "2024-05-06T07:08:09Z" {
		t.Fatalf("valueFrom(time) = %+v", v)
	}
}
