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

package workspace

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
)

// Save stores the current pipeline under name. While attached to a saved
// pipeline the record is updated in place unless asNew is set; the workspace
// is attached to whatever record was written.
func (w *Workspace) Save(ctx context.Context, name string, asNew bool) (*store.SavedPipeline, error) {
	if w.opts.Library == nil {
		return nil, ErrNoLibrary
	}
	w.mu.Lock()
	w.flush()
	req := store.SaveRequest{
		Name:        name,
		SourceInput: w.state.SourceInput,
		Blocks:      w.definitions(),
	}
	if !asNew {
		req.ID = w.activeID
	}
	w.unlock()

	rec, err := w.opts.Library.Save(ctx, req)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.unlock()
	if w.activeID != "" && w.activeID != rec.ID {
		w.detach()
	}
	w.activeID = rec.ID
	return rec, nil
}

// Load replaces the workspace with the saved pipeline id and attaches to it.
// The load is recorded as a single history entry.
func (w *Workspace) Load(ctx context.Context, id string) (pipeline.Evaluation, error) {
	if w.opts.Library == nil {
		return pipeline.Evaluation{}, ErrNoLibrary
	}
	rec, err := w.opts.Library.Get(ctx, id)
	if err != nil {
		return pipeline.Evaluation{}, errors.Wrapf(err, "load saved pipeline %s", id)
	}

	w.mu.Lock()
	defer w.unlock()
	w.flush()
	w.state.SourceInput = rec.SourceInput
	ev := w.apply(rec.Blocks, w.state.Blocks)
	if w.activeID != rec.ID {
		w.detach()
	}
	w.activeID = rec.ID
	w.recordNow()
	return ev, nil
}

// DeleteSaved removes a saved pipeline. Deleting the attached one detaches
// the workspace but leaves its blocks untouched.
func (w *Workspace) DeleteSaved(ctx context.Context, id string) error {
	if w.opts.Library == nil {
		return ErrNoLibrary
	}
	if err := w.opts.Library.Delete(ctx, id); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.unlock()
	if w.activeID == id {
		w.detach()
	}
	return nil
}

// Export captures the current pipeline without block ids.
func (w *Workspace) Export() store.ExportPayload {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	return store.NewExport(w.state.SourceInput, w.definitions(), w.opts.Now())
}

// Import replaces the workspace with p. Blocks get fresh ids and the
// workspace detaches from any saved pipeline.
func (w *Workspace) Import(p store.ExportPayload) pipeline.Evaluation {
	w.mu.Lock()
	defer w.unlock()
	w.flush()
	w.state.SourceInput = p.SourceInput
	ev := w.apply(p.Definitions(w.opts.NewID), nil)
	w.detach()
	w.recordNow()
	return ev
}
