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

package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/textflow/transform"
)

// BlockDefinition is the persisted part of a block.
type BlockDefinition struct {
	ID     string
	Kind   transform.Kind
	Config transform.Config
}

// Equal compares id, kind and config.
func (d BlockDefinition) Equal(o BlockDefinition) bool {
	return d.ID == o.ID && d.Kind == o.Kind && transform.ConfigEqual(d.Config, o.Config)
}

type blockJSON struct {
	ID     string          `json:"id,omitempty"`
	Kind   transform.Kind  `json:"kind"`
	Config json.RawMessage `json:"config"`
}

func (d BlockDefinition) MarshalJSON() ([]byte, error) {
	cfg, err := transform.MarshalConfig(d.Config)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", d.ID, err)
	}
	return json.Marshal(blockJSON{ID: d.ID, Kind: d.Kind, Config: cfg})
}

// UnmarshalJSON decodes the config according to the block's kind using the
// default transform registry.
func (d *BlockDefinition) UnmarshalJSON(b []byte) error {
	var in blockJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Kind == "" {
		return fmt.Errorf("block %q: missing kind", in.ID)
	}
	cfg, err := transform.DecodeConfig(in.Kind, in.Config)
	if err != nil {
		return fmt.Errorf("block %q: %w", in.ID, err)
	}
	d.ID, d.Kind, d.Config = in.ID, in.Kind, cfg
	return nil
}

// CloneDefinitions copies defs. Configs are treated as immutable values and shared.
func CloneDefinitions(defs []BlockDefinition) []BlockDefinition {
	if defs == nil {
		return nil
	}
	return append(make([]BlockDefinition, 0, len(defs)), defs...)
}

// Resolution records the outcome of an async block together with the
// upstream value and config it was computed from.
type Resolution struct {
	Input  transform.Value
	Config transform.Config
	Result transform.Result
}

// BlockInstance is a definition plus its derived output.
type BlockInstance struct {
	BlockDefinition
	Output     transform.Result
	Resolution *Resolution
}

// Hydrate turns definitions into instances carrying placeholder outputs.
func Hydrate(defs []BlockDefinition) []BlockInstance {
	out := make([]BlockInstance, len(defs))
	for i, d := range defs {
		out[i] = BlockInstance{BlockDefinition: d, Output: transform.Placeholder()}
	}
	return out
}

// Definitions strips derived state from instances.
func Definitions(blocks []BlockInstance) []BlockDefinition {
	out := make([]BlockDefinition, len(blocks))
	for i, b := range blocks {
		out[i] = b.BlockDefinition
	}
	return out
}

// CheckIDs fails when a block has no id or shares its id with another block.
func CheckIDs(defs []BlockDefinition) error {
	seen := make(map[string]int, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("block %d: %w", i, ErrMissingID)
		}
		if j, ok := seen[d.ID]; ok {
			return fmt.Errorf("blocks %d and %d share id %q: %w", j, i, d.ID, ErrDuplicateID)
		}
		seen[d.ID] = i
	}
	return nil
}

// IndexOf returns the position of the block with id, or -1.
func IndexOf(blocks []BlockInstance, id string) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Pipeline is the live state of an editing session.
type Pipeline struct {
	SourceInput string
	Blocks      []BlockInstance
}

// FinalOutput is the last block's data, or the source input when there are no blocks.
func (p Pipeline) FinalOutput() transform.Value {
	if len(p.Blocks) == 0 {
		return p.SourceInput
	}
	return p.Blocks[len(p.Blocks)-1].Output.Data
}

// Upstream is the value fed into the block at index i.
func (p Pipeline) Upstream(i int) transform.Value {
	if i <= 0 {
		return p.SourceInput
	}
	return p.Blocks[i-1].Output.Data
}
