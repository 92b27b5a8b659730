/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage owns the on-disk state of the prompt manager inside a
// host installation: the per-user data directory, the settings document
// (settings.json) with its databasePath/databasePathCustom keys, and the
// embedded SQLite prompt database.
// It covers opening the database with the canonical schema, rewriting
// legacy table layouts in place (Migrate), moving the database to a new
// location with rollback on failure (Relocate), and adopting stray files
// that earlier releases wrote directly into the host root (ImportLegacy).
// All writes either go through atomic rename or keep a backup until the
// operation has verifiably succeeded.
package storage
