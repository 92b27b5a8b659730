/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

func loadSettingsSchema(t *testing.T) gojsonschema.JSONLoader {
	t.Helper()
	schemaPath := filepath.Join("..", "..", "docs", "settings.schema.json")
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	return gojsonschema.NewBytesLoader(schemaBytes)
}

func TestSettingsDocumentConformsToSchema(t *testing.T) {
	ws := newTestWorkspace(t)
	st := NewSettingsStore(ws)
	if err := st.SetDatabasePath(filepath.Join(t.TempDir(), "p.db"), true); err != nil {
		t.Fatalf("SetDatabasePath: %v", err)
	}

	data, err := os.ReadFile(st.Path())
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}

	result, err := gojsonschema.Validate(loadSettingsSchema(t), gojsonschema.NewBytesLoader(data))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("settings document does not conform to schema")
	}
}

func TestSettingsSchemaRejectsBlankPath(t *testing.T) {
	doc := []byte(`{"databasePath": "", "databasePathCustom": false}`)
	result, err := gojsonschema.Validate(loadSettingsSchema(t), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if result.Valid() {
		t.Fatal("blank databasePath should not validate")
	}
}
