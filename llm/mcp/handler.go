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

package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/utils"
	"github.com/cloudwego/textflow/llm/prompt"
	"github.com/cloudwego/textflow/llm/tool"
)

func NewTool[R any, T any](name string, desc string, schema json.RawMessage, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, schema),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return nil, err
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := utils.MarshalJSONBytes(resp); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

func getPipelineTools(opts tool.PipelineToolsOptions) []Tool {
	pt := tool.NewPipelineTools(opts)
	tools := []Tool{
		NewTool(tool.ToolListBlockKinds, tool.DescListBlockKinds, tool.SchemaListBlockKinds, pt.ListBlockKinds),
		NewTool(tool.ToolEvaluatePipeline, tool.DescEvaluatePipeline, tool.SchemaEvaluatePipeline, pt.EvaluatePipeline),
	}
	if opts.Library != nil {
		tools = append(tools,
			NewTool(tool.ToolListSavedPipelines, tool.DescListSavedPipelines, tool.SchemaListSavedPipelines, pt.ListSavedPipelines),
			NewTool(tool.ToolRunSavedPipeline, tool.DescRunSavedPipeline, tool.SchemaRunSavedPipeline, pt.RunSavedPipeline),
		)
	}
	return tools
}

const PromptTransformText = "transform_text"

func handleTransformPrompt(
	ctx context.Context,
	request mcp.GetPromptRequest,
) (*mcp.GetPromptResult, error) {
	instruction := request.Params.Arguments["instruction"]
	if instruction == "" {
		return nil, errors.New("argument instruction is required")
	}
	return &mcp.GetPromptResult{
		Description: "System prompt of an AI transform block",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: prompt.Transform(nil, instruction, 0).String(),
				},
			},
		},
	}, nil
}
