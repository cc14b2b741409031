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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Snapshot is an immutable history entry: the source input and the block
// definitions at one point in time. Outputs are never part of a snapshot.
type Snapshot struct {
	SourceInput string            `json:"sourceInput"`
	Blocks      []BlockDefinition `json:"blocks"`
	// Hash is the hex-encoded sha256 of the snapshot's JSON form.
	Hash string `json:"-"`
}

// NewSnapshot copies defs into a new snapshot.
func NewSnapshot(sourceInput string, defs []BlockDefinition) *Snapshot {
	s := &Snapshot{
		SourceInput: sourceInput,
		Blocks:      CloneDefinitions(defs),
	}
	if s.Blocks == nil {
		s.Blocks = []BlockDefinition{}
	}
	raw, err := json.Marshal(s)
	if err == nil {
		h := sha256.Sum256(raw)
		s.Hash = hex.EncodeToString(h[:])
	}
	return s
}

// Equal reports structural equality. Differing hashes short-circuit to false.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Hash != "" && o.Hash != "" && s.Hash != o.Hash {
		return false
	}
	if s.SourceInput != o.SourceInput || len(s.Blocks) != len(o.Blocks) {
		return false
	}
	for i := range s.Blocks {
		if !s.Blocks[i].Equal(o.Blocks[i]) {
			return false
		}
	}
	return true
}

// Definitions returns a copy of the snapshot's blocks.
func (s *Snapshot) Definitions() []BlockDefinition {
	return CloneDefinitions(s.Blocks)
}

// Instances rehydrates the snapshot with placeholder outputs, ready to evaluate.
func (s *Snapshot) Instances() []BlockInstance {
	return Hydrate(s.Blocks)
}

// ShortHash is the first 12 hex digits of Hash, for logs.
func (s *Snapshot) ShortHash() string {
	if len(s.Hash) < 12 {
		return s.Hash
	}
	return s.Hash[:12]
}
