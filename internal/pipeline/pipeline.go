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
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/transform"
)

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrNotAsync        = errors.New("block kind is not resolved asynchronously")
	ErrStaleResolution = errors.New("resolution is stale")
	ErrDuplicateID     = errors.New("duplicate block id")
	ErrMissingID       = errors.New("block has no id")
)

// ChangeSet lists the ids of blocks whose output changed, in pipeline order.
type ChangeSet []string

func (c ChangeSet) Has(id string) bool {
	for _, x := range c {
		if x == id {
			return true
		}
	}
	return false
}

// Evaluation is the outcome of one evaluation pass.
type Evaluation struct {
	SourceInput string
	Blocks      []BlockInstance
	Changed     ChangeSet
}

// Pipeline returns the evaluated state.
func (ev Evaluation) Pipeline() Pipeline {
	return Pipeline{SourceInput: ev.SourceInput, Blocks: ev.Blocks}
}

// Evaluator derives block outputs from definitions by folding the transform
// registry over them. It holds no state between calls.
type Evaluator struct {
	Registry *transform.Registry
}

// NewEvaluator uses reg, or the default registry when reg is nil.
func NewEvaluator(reg *transform.Registry) *Evaluator {
	if reg == nil {
		reg = transform.Default
	}
	return &Evaluator{Registry: reg}
}

// Evaluate runs every block in order, feeding each block the previous block's
// data. A block's output is compared with the previous instance of the same id;
// unchanged outputs are kept as they were and only changed ids are reported.
// A failed block passes nil downstream; evaluation never stops early.
func (e *Evaluator) Evaluate(ctx context.Context, sourceInput string, defs []BlockDefinition, previous []BlockInstance) Evaluation {
	ctx, span := startEvaluateSpan(ctx, len(defs))
	defer span.End()
	start := time.Now()

	blocks, changed := e.fold(ctx, sourceInput, defs, indexByID(previous))

	recordEvaluateMetrics(ctx, time.Since(start), len(defs), len(changed))
	span.SetAttributes(attribute.Int("pipeline.changed", len(changed)))
	log.Debug("evaluate: %d blocks, %d changed", len(defs), len(changed))
	return Evaluation{SourceInput: sourceInput, Blocks: blocks, Changed: changed}
}

func indexByID(blocks []BlockInstance) map[string]*BlockInstance {
	m := make(map[string]*BlockInstance, len(blocks))
	for i := range blocks {
		m[blocks[i].ID] = &blocks[i]
	}
	return m
}

func (e *Evaluator) fold(ctx context.Context, current transform.Value, defs []BlockDefinition, prev map[string]*BlockInstance) ([]BlockInstance, ChangeSet) {
	blocks := make([]BlockInstance, 0, len(defs))
	changed := ChangeSet{}
	for _, d := range defs {
		p := prev[d.ID]
		out := BlockInstance{BlockDefinition: d}

		var res transform.Result
		if r := reusableResolution(e.Registry, d, p, current); r != nil {
			res, out.Resolution = r.Result, r
		} else {
			res = e.Registry.Evaluate(d.Kind, current, d.Config)
		}
		if res.Failed() {
			recordBlockFailure(ctx, string(d.Kind))
		}

		if p != nil && p.Output.Equal(res) {
			out.Output = p.Output
		} else {
			out.Output = res
			changed = append(changed, d.ID)
		}
		blocks = append(blocks, out)
		current = out.Output.Data
	}
	return blocks, changed
}

// reusableResolution returns the previous resolution of an async block if it
// was computed from the same upstream value and config.
func reusableResolution(reg *transform.Registry, d BlockDefinition, prev *BlockInstance, upstream transform.Value) *Resolution {
	if prev == nil || prev.Resolution == nil || !reg.IsAsync(d.Kind) {
		return nil
	}
	r := prev.Resolution
	if !transform.ConfigEqual(r.Config, d.Config) || !transform.Equal(r.Input, upstream) {
		return nil
	}
	return r
}

// ResolveRequest captures what an async block is resolved from.
type ResolveRequest struct {
	BlockID string
	Kind    transform.Kind
	Config  transform.Config
	Input   transform.Value
	Prompt  string
}

// PrepareResolve snapshots the inputs needed to resolve the async block id.
func (e *Evaluator) PrepareResolve(p Pipeline, id string) (ResolveRequest, error) {
	idx := IndexOf(p.Blocks, id)
	if idx < 0 {
		return ResolveRequest{}, fmt.Errorf("resolve %s: %w", id, ErrBlockNotFound)
	}
	b := p.Blocks[idx]
	if !e.Registry.IsAsync(b.Kind) {
		return ResolveRequest{}, fmt.Errorf("resolve %s (%s): %w", id, b.Kind, ErrNotAsync)
	}
	return ResolveRequest{
		BlockID: id,
		Kind:    b.Kind,
		Config:  b.Config,
		Input:   p.Upstream(idx),
		Prompt:  promptOf(b.Config),
	}, nil
}

// Call runs the resolver for req. Failures become a failed Result.
func (e *Evaluator) Call(ctx context.Context, req ResolveRequest, r Resolver) transform.Result {
	ctx, span := startResolveSpan(ctx, req.BlockID)
	defer span.End()
	start := time.Now()

	res := callResolver(ctx, req, r)
	outcome := "ok"
	if res.Failed() {
		outcome = "error"
		span.SetAttributes(attribute.String("pipeline.error", res.Error))
	}
	recordResolution(ctx, time.Since(start), outcome)
	return res
}

func callResolver(ctx context.Context, req ResolveRequest, r Resolver) transform.Result {
	if r == nil {
		return transform.Fail(ErrNoResolver)
	}
	text, err := transform.ToText(req.Input)
	if err != nil {
		return transform.Fail(err)
	}
	out, err := r.Resolve(ctx, text, req.Prompt)
	if err != nil {
		return transform.Fail(err)
	}
	return transform.Ok(out)
}

// ApplyResolve installs a resolved result into p and re-evaluates only the
// blocks after it. It fails with ErrStaleResolution when the block is gone or
// its upstream value or config changed since req was prepared.
func (e *Evaluator) ApplyResolve(ctx context.Context, p Pipeline, req ResolveRequest, res transform.Result) (Evaluation, error) {
	idx := IndexOf(p.Blocks, req.BlockID)
	if idx < 0 {
		return Evaluation{}, fmt.Errorf("resolve %s: block removed: %w", req.BlockID, ErrStaleResolution)
	}
	b := p.Blocks[idx]
	if !transform.ConfigEqual(b.Config, req.Config) || !transform.Equal(p.Upstream(idx), req.Input) {
		return Evaluation{}, fmt.Errorf("resolve %s: input changed: %w", req.BlockID, ErrStaleResolution)
	}

	blocks := make([]BlockInstance, 0, len(p.Blocks))
	blocks = append(blocks, p.Blocks[:idx]...)

	changed := ChangeSet{}
	resolved := BlockInstance{
		BlockDefinition: b.BlockDefinition,
		Output:          b.Output,
		Resolution:      &Resolution{Input: req.Input, Config: req.Config, Result: res},
	}
	if !b.Output.Equal(res) {
		resolved.Output = res
		changed = append(changed, b.ID)
	}
	blocks = append(blocks, resolved)

	downstream, more := e.fold(ctx, resolved.Output.Data, Definitions(p.Blocks[idx+1:]), indexByID(p.Blocks[idx+1:]))
	blocks = append(blocks, downstream...)
	changed = append(changed, more...)

	log.Debug("resolve %s: %d downstream blocks, %d changed", req.BlockID, len(downstream), len(changed))
	return Evaluation{SourceInput: p.SourceInput, Blocks: blocks, Changed: changed}, nil
}

// Resolve is PrepareResolve, Call and ApplyResolve in one step.
func (e *Evaluator) Resolve(ctx context.Context, p Pipeline, id string, r Resolver) (Evaluation, error) {
	req, err := e.PrepareResolve(p, id)
	if err != nil {
		return Evaluation{}, err
	}
	return e.ApplyResolve(ctx, p, req, e.Call(ctx, req, r))
}

func promptOf(cfg transform.Config) string {
	if c, ok := cfg.(transform.AIConfig); ok {
		return c.Prompt
	}
	return ""
}

// Run evaluates defs from scratch and then resolves every async block in
// order, so each resolution sees the resolved output of the blocks before it.
// With a nil resolver async blocks keep their placeholder output.
func (e *Evaluator) Run(ctx context.Context, sourceInput string, defs []BlockDefinition, r Resolver) (Evaluation, error) {
	if err := CheckIDs(defs); err != nil {
		return Evaluation{SourceInput: sourceInput}, err
	}
	ev := e.Evaluate(ctx, sourceInput, defs, nil)
	if r == nil {
		return ev, nil
	}
	changed := ev.Changed
	for _, d := range defs {
		if !e.Registry.IsAsync(d.Kind) {
			continue
		}
		next, err := e.Resolve(ctx, ev.Pipeline(), d.ID, r)
		if err != nil {
			return ev, err
		}
		for _, id := range next.Changed {
			if !changed.Has(id) {
				changed = append(changed, id)
			}
		}
		ev = next
	}
	ev.Changed = changed
	return ev, nil
}
