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
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/transform"
)

func invoke(t *testing.T, tools *PipelineTools, name string, args string, out any) {
	tt, ok := tools.GetTool(name).(tool.InvokableTool)
	require.True(t, ok, name)
	res, err := tt.InvokableRun(context.Background(), args)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(res), out), res)
}

func TestPipelineTools(t *testing.T) {
	ctx := context.Background()
	lib := store.NewLibrary(store.NewMemoryKV())
	saved, err := lib.Save(ctx, store.SaveRequest{
		Name:        "first column",
		SourceInput: "a,b",
		Blocks: []pipeline.BlockDefinition{
			{ID: "s", Kind: transform.KindSplit, Config: transform.SplitConfig{Separator: ","}},
			{ID: "f", Kind: transform.KindSelectField, Config: transform.SelectFieldConfig{Path: "0"}},
		},
	})
	require.NoError(t, err)

	tools := NewPipelineTools(PipelineToolsOptions{Library: lib})
	require.Len(t, tools.GetTools(), 4)

	var kinds ListBlockKindsResp
	invoke(t, tools, ToolListBlockKinds, `{}`, &kinds)
	require.NotEmpty(t, kinds.Kinds)
	assert.Equal(t, string(transform.KindEscape), kinds.Kinds[0].Kind)
	assert.JSONEq(t, `{"mode":"html"}`, string(kinds.Kinds[0].DefaultConfig))

	var ev EvaluatePipelineResp
	invoke(t, tools, ToolEvaluatePipeline, `{
		"source_input": "{\"user\":{\"name\":\"ann\"}}",
		"blocks": [
			{"kind": "PARSE_JSON"},
			{"kind": "SELECT_FIELD", "config": {"path": "user.name"}},
			{"kind": "TRANSFORM_CASE"}
		]
	}`, &ev)
	assert.Empty(t, ev.Error)
	require.Len(t, ev.Blocks, 3)
	assert.Equal(t, transform.TypeObject, ev.Blocks[0].Result.Type)
	assert.Equal(t, "ANN", ev.FinalOutput)

	var bad EvaluatePipelineResp
	invoke(t, tools, ToolEvaluatePipeline, `{"source_input":"x","blocks":[{"kind":"SPLIT","config":{"separator":1}}]}`, &bad)
	assert.Contains(t, bad.Error, "block 0")

	var list ListSavedPipelinesResp
	invoke(t, tools, ToolListSavedPipelines, `{}`, &list)
	require.Len(t, list.Pipelines, 1)
	assert.Equal(t, []string{"SPLIT", "SELECT_FIELD"}, list.Pipelines[0].Kinds)

	var run EvaluatePipelineResp
	invoke(t, tools, ToolRunSavedPipeline, `{"id":"`+saved.ID+`"}`, &run)
	assert.Equal(t, "a", run.FinalOutput)
	invoke(t, tools, ToolRunSavedPipeline, `{"id":"`+saved.ID+`","source_input":"z,y"}`, &run)
	assert.Equal(t, "z", run.FinalOutput)
	invoke(t, tools, ToolRunSavedPipeline, `{"id":"nope"}`, &run)
	assert.NotEmpty(t, run.Error)
}

func TestPipelineToolsWithoutLibrary(t *testing.T) {
	tools := NewPipelineTools(PipelineToolsOptions{})
	assert.Len(t, tools.GetTools(), 2)
	assert.Nil(t, tools.GetTool(ToolRunSavedPipeline))
}

func TestGetJSONSchema(t *testing.T) {
	var s map[string]any
	require.NoError(t, json.Unmarshal(SchemaEvaluatePipeline, &s))
	assert.Equal(t, "object", s["type"])
	props := s["properties"].(map[string]any)
	assert.Contains(t, props, "source_input")
	assert.Contains(t, props, "blocks")
}
