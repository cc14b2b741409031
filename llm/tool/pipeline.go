/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/google/uuid"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/transform"
)

const (
	ToolListBlockKinds      = "list_block_kinds"
	DescListBlockKinds      = "list every transform block kind with its description and default config"
	ToolEvaluatePipeline    = "evaluate_pipeline"
	DescEvaluatePipeline    = "run a source text through an ordered list of transform blocks and return every block's output"
	ToolListSavedPipelines  = "list_saved_pipelines"
	DescListSavedPipelines  = "list the saved pipelines, newest first"
	ToolRunSavedPipeline    = "run_saved_pipeline"
	DescRunSavedPipeline    = "run a saved pipeline, optionally on a different source text"
)

var (
	SchemaListBlockKinds     = GetJSONSchema(ListBlockKindsReq{})
	SchemaEvaluatePipeline   = GetJSONSchema(EvaluatePipelineReq{})
	SchemaListSavedPipelines = GetJSONSchema(ListSavedPipelinesReq{})
	SchemaRunSavedPipeline   = GetJSONSchema(RunSavedPipelineReq{})
)

type PipelineToolsOptions struct {
	Registry *transform.Registry
	// Library enables the saved-pipeline tools.
	Library *store.Library
	// Resolver resolves AI blocks; without it they pass their input through.
	Resolver pipeline.Resolver
}

type PipelineTools struct {
	opts  PipelineToolsOptions
	eval  *pipeline.Evaluator
	tools map[string]tool.InvokableTool
}

func NewPipelineTools(opts PipelineToolsOptions) *PipelineTools {
	ret := &PipelineTools{
		opts:  opts,
		eval:  pipeline.NewEvaluator(opts.Registry),
		tools: map[string]tool.InvokableTool{},
	}

	tt, err := utils.InferTool(ToolListBlockKinds, DescListBlockKinds,
		ret.ListBlockKinds, utils.WithMarshalOutput(marshalOutput))
	if err != nil {
		panic(err)
	}
	ret.tools[ToolListBlockKinds] = tt

	tt, err = utils.InferTool(ToolEvaluatePipeline, DescEvaluatePipeline,
		ret.EvaluatePipeline, utils.WithMarshalOutput(marshalOutput))
	if err != nil {
		panic(err)
	}
	ret.tools[ToolEvaluatePipeline] = tt

	if opts.Library == nil {
		return ret
	}

	tt, err = utils.InferTool(ToolListSavedPipelines, DescListSavedPipelines,
		ret.ListSavedPipelines, utils.WithMarshalOutput(marshalOutput))
	if err != nil {
		panic(err)
	}
	ret.tools[ToolListSavedPipelines] = tt

	tt, err = utils.InferTool(ToolRunSavedPipeline, DescRunSavedPipeline,
		ret.RunSavedPipeline, utils.WithMarshalOutput(marshalOutput))
	if err != nil {
		panic(err)
	}
	ret.tools[ToolRunSavedPipeline] = tt

	return ret
}

// GetTools returns the tools sorted by name.
func (t *PipelineTools) GetTools() []Tool {
	names := make([]string, 0, len(t.tools))
	for n := range t.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	ret := make([]Tool, 0, len(names))
	for _, n := range names {
		ret = append(ret, t.tools[n])
	}
	return ret
}

func (t *PipelineTools) GetTool(name string) Tool {
	return t.tools[name]
}

type ListBlockKindsReq struct {
}

type ListBlockKindsResp struct {
	Kinds []BlockKind `json:"kinds" jsonschema:"description=the registered block kinds"`
}

type BlockKind struct {
	Kind          string          `json:"kind" jsonschema:"description=the kind name used in block definitions"`
	Label         string          `json:"label"`
	Description   string          `json:"description,omitempty"`
	Async         bool            `json:"async,omitempty" jsonschema:"description=whether the block is resolved by a language model"`
	DefaultConfig json.RawMessage `json:"default_config" jsonschema:"description=the config a new block of this kind starts with"`
}

func (t *PipelineTools) ListBlockKinds(ctx context.Context, req ListBlockKindsReq) (*ListBlockKindsResp, error) {
	ret := ListBlockKindsResp{}
	for _, s := range t.eval.Registry.Kinds() {
		raw, err := transform.MarshalConfig(s.Default)
		if err != nil {
			return nil, err
		}
		ret.Kinds = append(ret.Kinds, BlockKind{
			Kind:          string(s.Kind),
			Label:         s.Label,
			Description:   s.Description,
			Async:         s.Async,
			DefaultConfig: raw,
		})
	}
	return &ret, nil
}

type BlockReq struct {
	Kind   string         `json:"kind" jsonschema:"description=the block kind, see list_block_kinds"`
	Config map[string]any `json:"config,omitempty" jsonschema:"description=the block config; omitted fields take the kind's defaults"`
}

type EvaluatePipelineReq struct {
	SourceInput string     `json:"source_input" jsonschema:"description=the text fed to the first block"`
	Blocks      []BlockReq `json:"blocks" jsonschema:"description=the blocks in evaluation order"`
}

type BlockResult struct {
	Index  int              `json:"index"`
	Kind   string           `json:"kind"`
	Result transform.Result `json:"result" jsonschema:"description=the block output: data, errorMessage and resultType"`
}

type EvaluatePipelineResp struct {
	Blocks      []BlockResult `json:"blocks"`
	FinalOutput string        `json:"final_output" jsonschema:"description=the last block's output as text"`
	Error       string        `json:"error,omitempty" jsonschema:"description=the error message"`
}

func (t *PipelineTools) EvaluatePipeline(ctx context.Context, req EvaluatePipelineReq) (*EvaluatePipelineResp, error) {
	defs := make([]pipeline.BlockDefinition, 0, len(req.Blocks))
	for i, b := range req.Blocks {
		raw, err := json.Marshal(b.Config)
		if err != nil {
			return nil, err
		}
		if b.Config == nil {
			raw = nil
		}
		cfg, err := t.eval.Registry.DecodeConfig(transform.Kind(b.Kind), raw)
		if err != nil {
			return &EvaluatePipelineResp{Error: fmt.Sprintf("block %d: %v", i, err)}, nil
		}
		defs = append(defs, pipeline.BlockDefinition{ID: uuid.NewString(), Kind: transform.Kind(b.Kind), Config: cfg})
	}
	return t.run(ctx, req.SourceInput, defs), nil
}

func (t *PipelineTools) run(ctx context.Context, source string, defs []pipeline.BlockDefinition) *EvaluatePipelineResp {
	ev, err := t.eval.Run(ctx, source, defs, t.opts.Resolver)
	ret := &EvaluatePipelineResp{Blocks: make([]BlockResult, 0, len(ev.Blocks))}
	if err != nil {
		log.Error("tool %s: %v", ToolEvaluatePipeline, err)
		ret.Error = err.Error()
	}
	for i, b := range ev.Blocks {
		ret.Blocks = append(ret.Blocks, BlockResult{Index: i, Kind: string(b.Kind), Result: b.Output})
	}
	if n := len(ev.Blocks); n > 0 {
		ret.FinalOutput = ev.Blocks[n-1].Output.Text()
	} else {
		ret.FinalOutput = source
	}
	return ret
}

type ListSavedPipelinesReq struct {
}

type SavedPipelineInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kinds     []string `json:"kinds" jsonschema:"description=the block kinds in order"`
	CreatedAt string   `json:"created_at"`
}

type ListSavedPipelinesResp struct {
	Pipelines []SavedPipelineInfo `json:"pipelines"`
	Error     string              `json:"error,omitempty" jsonschema:"description=the error message"`
}

func (t *PipelineTools) ListSavedPipelines(ctx context.Context, req ListSavedPipelinesReq) (*ListSavedPipelinesResp, error) {
	list, err := t.opts.Library.List(ctx)
	if err != nil {
		return &ListSavedPipelinesResp{Error: err.Error()}, nil
	}
	ret := ListSavedPipelinesResp{Pipelines: make([]SavedPipelineInfo, 0, len(list))}
	for _, p := range list {
		info := SavedPipelineInfo{ID: p.ID, Name: p.Name, CreatedAt: p.Created().UTC().Format("2006-01-02T15:04:05Z")}
		for _, b := range p.Blocks {
			info.Kinds = append(info.Kinds, string(b.Kind))
		}
		ret.Pipelines = append(ret.Pipelines, info)
	}
	return &ret, nil
}

type RunSavedPipelineReq struct {
	ID          string  `json:"id" jsonschema:"description=the saved pipeline id, see list_saved_pipelines"`
	SourceInput *string `json:"source_input,omitempty" jsonschema:"description=replaces the saved source text when set"`
}

func (t *PipelineTools) RunSavedPipeline(ctx context.Context, req RunSavedPipelineReq) (*EvaluatePipelineResp, error) {
	p, err := t.opts.Library.Get(ctx, req.ID)
	if err != nil {
		return &EvaluatePipelineResp{Error: err.Error()}, nil
	}
	source := p.SourceInput
	if req.SourceInput != nil {
		source = *req.SourceInput
	}
	return t.run(ctx, source, p.Blocks), nil
}
