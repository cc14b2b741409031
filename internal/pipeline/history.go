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
	"github.com/cloudwego/textflow/internal/log"
)

// History is a linear undo/redo list of snapshots.
// Cursor is -1 until the first Record, then always a valid index.
// It is not safe for concurrent use; owners serialize access.
type History struct {
	entries []*Snapshot
	cursor  int
	limit   int
}

// NewHistory creates an empty history. limit caps the number of entries;
// zero or less means unlimited.
func NewHistory(limit int) *History {
	return &History{cursor: -1, limit: limit}
}

// Record appends a snapshot of (sourceInput, defs) after the cursor, discarding
// any redo branch. It is a no-op when the state equals the entry at the cursor.
func (h *History) Record(sourceInput string, defs []BlockDefinition) bool {
	snap := NewSnapshot(sourceInput, defs)
	if cur, ok := h.Current(); ok && cur.Equal(snap) {
		return false
	}
	if dropped := len(h.entries) - (h.cursor + 1); dropped > 0 {
		log.Debug("history: discarding %d redo entries", dropped)
	}
	h.entries = append(h.entries[:h.cursor+1], snap)
	h.cursor = len(h.entries) - 1
	if h.limit > 0 && len(h.entries) > h.limit {
		over := len(h.entries) - h.limit
		h.entries = append([]*Snapshot(nil), h.entries[over:]...)
		h.cursor -= over
	}
	log.Debug("history: recorded %s at %d/%d", snap.ShortHash(), h.cursor, len(h.entries))
	return true
}

// Undo moves the cursor back one entry if possible and returns the entry at
// the cursor. moved is false when there was nothing to undo.
func (h *History) Undo() (snap *Snapshot, moved bool) {
	if h.CanUndo() {
		h.cursor--
		moved = true
	}
	snap, _ = h.Current()
	return snap, moved
}

// Redo moves the cursor forward one entry if possible and returns the entry at the cursor.
func (h *History) Redo() (snap *Snapshot, moved bool) {
	if h.CanRedo() {
		h.cursor++
		moved = true
	}
	snap, _ = h.Current()
	return snap, moved
}

// Current returns the entry at the cursor.
func (h *History) Current() (*Snapshot, bool) {
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return nil, false
	}
	return h.entries[h.cursor], true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.entries)-1 }

func (h *History) Len() int { return len(h.entries) }

func (h *History) Cursor() int { return h.cursor }

// Entries returns the recorded snapshots, oldest first.
func (h *History) Entries() []*Snapshot {
	return append([]*Snapshot(nil), h.entries...)
}
