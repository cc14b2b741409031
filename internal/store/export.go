// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cloudwego/textflow/internal/pipeline"
)

// ExportPayload is the portable form of a pipeline. Blocks carry no ids.
type ExportPayload struct {
	SourceInput string                     `json:"sourceInput"`
	Blocks      []pipeline.BlockDefinition `json:"blocks"`
	ExportedAt  time.Time                  `json:"exportedAt"`
}

// NewExport strips ids from defs.
func NewExport(sourceInput string, defs []pipeline.BlockDefinition, now time.Time) ExportPayload {
	blocks := make([]pipeline.BlockDefinition, len(defs))
	for i, d := range defs {
		blocks[i] = pipeline.BlockDefinition{Kind: d.Kind, Config: d.Config}
	}
	return ExportPayload{SourceInput: sourceInput, Blocks: blocks, ExportedAt: now.UTC()}
}

// ExportFileName is the conventional file name for an export taken at now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("textflow-pipeline-%d.json", now.UnixMilli())
}

// Definitions returns the blocks, each with a fresh id from newID.
func (p ExportPayload) Definitions(newID func() string) []pipeline.BlockDefinition {
	out := pipeline.CloneDefinitions(p.Blocks)
	for i := range out {
		out[i].ID = newID()
	}
	return out
}

// AssignIDs copies defs, giving every block without an id a fresh one.
// Generated ids that are already taken by another block are skipped.
func AssignIDs(defs []pipeline.BlockDefinition, newID func() string) []pipeline.BlockDefinition {
	out := pipeline.CloneDefinitions(defs)
	taken := make(map[string]bool, len(out))
	for _, d := range out {
		if d.ID != "" {
			taken[d.ID] = true
		}
	}
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		id := newID()
		for taken[id] {
			id = newID()
		}
		taken[id] = true
		out[i].ID = id
	}
	return out
}

// PipelineFile is what a pipeline file on disk may hold: an export payload
// or a saved record. Name and ids are optional.
type PipelineFile struct {
	Name        string                     `json:"name,omitempty"`
	SourceInput string                     `json:"sourceInput"`
	Blocks      []pipeline.BlockDefinition `json:"blocks"`
}

// ParsePipelineFile decodes JSON, or YAML when format is "yaml" or "yml".
// Blocks may omit their id, but ids that are present must be unique.
func ParsePipelineFile(data []byte, format string) (*PipelineFile, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse yaml pipeline")
		}
		js, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "convert yaml pipeline")
		}
		data = js
	case "json", "":
	default:
		return nil, errors.Errorf("unsupported pipeline format %q", format)
	}
	var f PipelineFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse pipeline")
	}
	seen := make(map[string]bool, len(f.Blocks))
	for i, b := range f.Blocks {
		if b.ID == "" {
			continue
		}
		if seen[b.ID] {
			return nil, errors.Wrapf(pipeline.ErrDuplicateID, "block %d: id %q", i, b.ID)
		}
		seen[b.ID] = true
	}
	return &f, nil
}

// LoadPipelineFile reads path, choosing the format by extension.
func LoadPipelineFile(path string) (*PipelineFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	f, err := ParsePipelineFile(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return f, nil
}
