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

// Package workspace is the editing session around a pipeline: every mutation
// re-evaluates the blocks and feeds the undo history.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/transform"
)

const (
	// DefaultEvalDebounce delays evaluation after source input edits.
	DefaultEvalDebounce = 150 * time.Millisecond
	// DefaultHistoryDebounce delays history records after text and config edits.
	DefaultHistoryDebounce = 500 * time.Millisecond
)

var (
	ErrResolutionPending = errors.New("resolution already in progress")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrConfigMismatch    = errors.New("config does not belong to the block kind")
	ErrNoLibrary         = errors.New("no saved-pipeline library configured")
)

// Options configures a Workspace. The zero value evaluates and records
// synchronously with the default registry.
type Options struct {
	Registry *transform.Registry
	// Resolver resolves async blocks; nil makes every resolution fail.
	Resolver pipeline.Resolver
	// Library persists saved pipelines; nil disables Save, Load and DeleteSaved.
	Library *store.Library

	// EvalDebounce delays evaluation after SetSourceInput; zero evaluates at once.
	EvalDebounce time.Duration
	// HistoryDebounce delays history records after SetSourceInput and
	// UpdateBlockConfig; zero records at once. Structural edits always record at once.
	HistoryDebounce time.Duration
	// HistoryLimit caps the number of undo entries; zero is unlimited.
	HistoryLimit int

	// OnEvaluated receives every evaluation, after the workspace lock is released.
	OnEvaluated func(pipeline.Evaluation)
	// OnDetach is called with the saved pipeline id the workspace stops tracking.
	OnDetach func(savedID string)

	NewID func() string
	Now   func() time.Time
}

// Workspace owns a live pipeline. It is safe for concurrent use.
type Workspace struct {
	mu      sync.Mutex
	opts    Options
	eval    *pipeline.Evaluator
	history *pipeline.History

	state    pipeline.Pipeline
	activeID string
	pending  map[string]struct{}

	evalTimer   *debouncer
	recordTimer *debouncer

	outbox   []pipeline.Evaluation
	detached []string
}

// New starts a session on sourceInput with no blocks and records it as the
// first history entry.
func New(sourceInput string, opts Options) *Workspace {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Workspace{
		opts:    opts,
		eval:    pipeline.NewEvaluator(opts.Registry),
		history: pipeline.NewHistory(opts.HistoryLimit),
		pending: map[string]struct{}{},
	}
	w.evalTimer = &debouncer{delay: opts.EvalDebounce, lock: w.mu.Lock, unlock: w.unlock}
	w.recordTimer = &debouncer{delay: opts.HistoryDebounce, lock: w.mu.Lock, unlock: w.unlock}

	w.mu.Lock()
	defer w.unlock()
	w.state.SourceInput = sourceInput
	w.apply(nil, nil)
	w.recordNow()
	return w
}

// unlock releases the lock and then delivers queued notifications.
func (w *Workspace) unlock() {
	evs, detached := w.outbox, w.detached
	w.outbox, w.detached = nil, nil
	w.mu.Unlock()
	if w.opts.OnEvaluated != nil {
		for _, ev := range evs {
			w.opts.OnEvaluated(ev)
		}
	}
	if w.opts.OnDetach != nil {
		for _, id := range detached {
			w.opts.OnDetach(id)
		}
	}
}

func (w *Workspace) definitions() []pipeline.BlockDefinition {
	return pipeline.Definitions(w.state.Blocks)
}

// apply evaluates defs against the current source input. previous supplies
// the outputs used for change detection.
func (w *Workspace) apply(defs []pipeline.BlockDefinition, previous []pipeline.BlockInstance) pipeline.Evaluation {
	w.evalTimer.cancel()
	ev := w.eval.Evaluate(context.Background(), w.state.SourceInput, defs, previous)
	w.state = ev.Pipeline()
	w.outbox = append(w.outbox, ev)
	return ev
}

func (w *Workspace) reevaluate() pipeline.Evaluation {
	return w.apply(w.definitions(), w.state.Blocks)
}

func (w *Workspace) record() {
	w.history.Record(w.state.SourceInput, w.definitions())
}

func (w *Workspace) recordNow() {
	w.recordTimer.cancel()
	w.record()
}

func (w *Workspace) recordLater() {
	w.recordTimer.schedule(w.record)
}

func (w *Workspace) detach() {
	if w.activeID == "" {
		return
	}
	log.Debug("workspace: detached from saved pipeline %s", w.activeID)
	w.detached = append(w.detached, w.activeID)
	w.activeID = ""
}

func (w *Workspace) indexOf(id string) (int, error) {
	idx := pipeline.IndexOf(w.state.Blocks, id)
	if idx < 0 {
		return -1, errors.Wrap(pipeline.ErrBlockNotFound, id)
	}
	return idx, nil
}

// AddBlock appends a block of kind with its default config.
func (w *Workspace) AddBlock(kind transform.Kind) (string, pipeline.Evaluation) {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	id := w.opts.NewID()
	defs := append(w.definitions(), pipeline.BlockDefinition{
		ID:     id,
		Kind:   kind,
		Config: w.eval.Registry.DefaultConfig(kind),
	})
	ev := w.apply(defs, w.state.Blocks)
	w.recordNow()
	return id, ev
}

// RemoveBlock deletes the block with id.
func (w *Workspace) RemoveBlock(id string) (pipeline.Evaluation, error) {
	w.mu.Lock()
	defer w.unlock()
	idx, err := w.indexOf(id)
	if err != nil {
		return pipeline.Evaluation{}, err
	}
	w.flush()
	defs := w.definitions()
	defs = append(defs[:idx], defs[idx+1:]...)
	ev := w.apply(defs, w.state.Blocks)
	w.recordNow()
	return ev, nil
}

// ReorderBlock moves the block with id to newIndex. Every block keeps its
// previous output until the evaluation that follows the move.
func (w *Workspace) ReorderBlock(id string, newIndex int) (pipeline.Evaluation, error) {
	w.mu.Lock()
	defer w.unlock()
	idx, err := w.indexOf(id)
	if err != nil {
		return pipeline.Evaluation{}, err
	}
	if newIndex < 0 || newIndex >= len(w.state.Blocks) {
		return pipeline.Evaluation{}, errors.Wrapf(ErrIndexOutOfRange, "move %s to %d", id, newIndex)
	}
	w.flush()
	blocks := append([]pipeline.BlockInstance(nil), w.state.Blocks...)
	moved := blocks[idx]
	blocks = append(blocks[:idx], blocks[idx+1:]...)
	blocks = append(blocks[:newIndex], append([]pipeline.BlockInstance{moved}, blocks[newIndex:]...)...)
	w.state.Blocks = blocks

	ev := w.reevaluate()
	w.recordNow()
	return ev, nil
}

// ReplaceBlocks swaps in a whole block list. Blocks whose id already exists
// keep their output for change detection. Every block needs its own id.
func (w *Workspace) ReplaceBlocks(defs []pipeline.BlockDefinition) (pipeline.Evaluation, error) {
	if err := pipeline.CheckIDs(defs); err != nil {
		return pipeline.Evaluation{}, errors.Wrap(err, "replace blocks")
	}
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	ev := w.apply(pipeline.CloneDefinitions(defs), w.state.Blocks)
	w.recordNow()
	return ev, nil
}

// UpdateBlockConfig replaces the config of the block with id. A nil config
// resets it to the kind's default.
func (w *Workspace) UpdateBlockConfig(id string, cfg transform.Config) (pipeline.Evaluation, error) {
	w.mu.Lock()
	defer w.unlock()
	idx, err := w.indexOf(id)
	if err != nil {
		return pipeline.Evaluation{}, err
	}
	kind := w.state.Blocks[idx].Kind
	if cfg == nil {
		cfg = w.eval.Registry.DefaultConfig(kind)
	}
	if cfg.Kind() != kind {
		return pipeline.Evaluation{}, errors.Wrapf(ErrConfigMismatch, "%s config for %s block", cfg.Kind(), kind)
	}
	defs := w.definitions()
	defs[idx].Config = cfg
	ev := w.apply(defs, w.state.Blocks)
	w.recordLater()
	return ev, nil
}

// SetSourceInput replaces the source text. With an evaluation debounce the
// evaluation is deferred and evaluated is false; the result then reaches
// OnEvaluated when the debounce fires or on Flush.
func (w *Workspace) SetSourceInput(text string) (ev pipeline.Evaluation, evaluated bool) {
	w.mu.Lock()
	defer w.unlock()
	w.state.SourceInput = text
	if w.opts.EvalDebounce > 0 {
		w.evalTimer.schedule(func() { w.reevaluate() })
	} else {
		ev, evaluated = w.reevaluate(), true
	}
	w.recordLater()
	return ev, evaluated
}

// Clear removes every block and detaches from the active saved pipeline.
// The source input is kept.
func (w *Workspace) Clear() pipeline.Evaluation {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	ev := w.apply(nil, w.state.Blocks)
	w.detach()
	w.recordNow()
	return ev
}

// Undo restores the previous history entry. Pending debounced work is
// flushed first so the latest edit can itself be undone.
func (w *Workspace) Undo() (pipeline.Evaluation, bool) {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	snap, moved := w.history.Undo()
	if !moved {
		return pipeline.Evaluation{}, false
	}
	return w.restore(snap), true
}

// Redo re-applies the next history entry.
func (w *Workspace) Redo() (pipeline.Evaluation, bool) {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	snap, moved := w.history.Redo()
	if !moved {
		return pipeline.Evaluation{}, false
	}
	return w.restore(snap), true
}

// restore rehydrates snap with placeholder outputs and evaluates it.
// It never records history.
func (w *Workspace) restore(snap *pipeline.Snapshot) pipeline.Evaluation {
	log.Debug("workspace: restoring %s", snap.ShortHash())
	w.state.SourceInput = snap.SourceInput
	return w.apply(snap.Definitions(), snap.Instances())
}

// Flush runs any debounced evaluation and history record now.
func (w *Workspace) Flush() {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
}

func (w *Workspace) flush() {
	w.evalTimer.flush()
	w.recordTimer.flush()
}

// Close flushes pending work and stops the debounce timers.
func (w *Workspace) Close() {
	w.Flush()
}

// Pipeline returns the current state. Block outputs are shared and must be
// treated as read-only.
func (w *Workspace) Pipeline() pipeline.Pipeline {
	w.mu.Lock()
	defer w.mu.Unlock()
	return pipeline.Pipeline{
		SourceInput: w.state.SourceInput,
		Blocks:      append([]pipeline.BlockInstance(nil), w.state.Blocks...),
	}
}

// FinalOutput is the data of the last block, or the source input.
func (w *Workspace) FinalOutput() transform.Value {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.FinalOutput()
}

// ActiveSavedID is the saved pipeline the workspace is attached to, or "".
func (w *Workspace) ActiveSavedID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeID
}

func (w *Workspace) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.CanUndo() || w.recordTimer.pending()
}

func (w *Workspace) CanRedo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.CanRedo() && !w.recordTimer.pending()
}

// Resolving reports whether an async resolution for id is in flight.
func (w *Workspace) Resolving(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[id]
	return ok
}

// Resolve runs the async block id through the resolver and re-evaluates the
// blocks after it. The resolver is called without holding the workspace lock.
// A second call for the same block while the first is in flight fails with
// ErrResolutionPending; a result whose upstream changed meanwhile is dropped
// with pipeline.ErrStaleResolution.
func (w *Workspace) Resolve(ctx context.Context, id string) (pipeline.Evaluation, error) {
	w.mu.Lock()
	if _, busy := w.pending[id]; busy {
		w.unlock()
		return pipeline.Evaluation{}, errors.Wrap(ErrResolutionPending, id)
	}
	w.evalTimer.flush()
	req, err := w.eval.PrepareResolve(w.state, id)
	if err != nil {
		w.unlock()
		return pipeline.Evaluation{}, err
	}
	w.pending[id] = struct{}{}
	w.unlock()

	res := w.eval.Call(ctx, req, w.opts.Resolver)

	w.mu.Lock()
	defer w.unlock()
	delete(w.pending, id)
	ev, err := w.eval.ApplyResolve(ctx, w.state, req, res)
	if err != nil {
		log.Warn("workspace: dropping resolution of %s: %v", id, err)
		return pipeline.Evaluation{}, err
	}
	w.state = ev.Pipeline()
	w.outbox = append(w.outbox, ev)
	return ev, nil
}
