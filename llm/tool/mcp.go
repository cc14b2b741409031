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
	"strings"

	emcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/version"
)

type MCPConfig struct {
	Type    MCPType  `mapstructure:"type"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Envs    []string `mapstructure:"envs"`
	SSEURL  string   `mapstructure:"sse_url"`
}

type MCPType string

const (
	MCPTypeStdio MCPType = "stdio"
	MCPTypeSSE   MCPType = "sse"
)

type MCPClient struct {
	cli *client.Client
}

func NewMCPClient(opts MCPConfig) (*MCPClient, error) {
	var cli *client.Client
	var err error
	switch opts.Type {
	case MCPTypeStdio:
		if opts.Command == "" {
			return nil, errors.New("command is empty")
		}
		cli, err = client.NewStdioMCPClient(opts.Command, opts.Envs, opts.Args...)
	case MCPTypeSSE:
		if opts.SSEURL == "" {
			return nil, errors.New("sse url is empty")
		}
		cli, err = client.NewSSEMCPClient(opts.SSEURL)
	default:
		return nil, errors.Errorf("unsupported mcp type %q", opts.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "new %s mcp client", opts.Type)
	}
	return &MCPClient{cli: cli}, nil
}

func (c *MCPClient) Start(ctx context.Context) error {
	if err := c.cli.Start(ctx); err != nil {
		return err
	}
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "textflow",
		Version: version.Version,
	}
	_, err := c.cli.Initialize(ctx, initRequest)
	return err
}

func (c *MCPClient) Close() error {
	return c.cli.Close()
}

// GetTools lists the server's tools; names narrows the list when not empty.
func (c *MCPClient) GetTools(ctx context.Context, names ...string) ([]Tool, error) {
	mcpTools, err := emcp.GetTools(ctx, &emcp.Config{Cli: c.cli, ToolNameList: names})
	if err != nil {
		return nil, err
	}
	var tools []Tool
	for _, t := range mcpTools {
		tools = append(tools, t)
	}
	return tools, nil
}

// MCPResolverOptions names the remote tool that rewrites text and the
// argument names it expects.
type MCPResolverOptions struct {
	ToolName  string `mapstructure:"tool"`
	InputArg  string `mapstructure:"input_arg"`
	PromptArg string `mapstructure:"prompt_arg"`
}

var _ pipeline.Resolver = (*MCPResolver)(nil)

// MCPResolver resolves AI blocks by calling a tool on an MCP server.
type MCPResolver struct {
	opts MCPResolverOptions
	tool tool.InvokableTool
}

func NewMCPResolver(ctx context.Context, c *MCPClient, opts MCPResolverOptions) (*MCPResolver, error) {
	if opts.InputArg == "" {
		opts.InputArg = "input"
	}
	if opts.PromptArg == "" {
		opts.PromptArg = "prompt"
	}
	tools, err := c.GetTools(ctx, opts.ToolName)
	if err != nil {
		return nil, errors.Wrap(err, "list mcp tools")
	}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil || info.Name != opts.ToolName {
			continue
		}
		it, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, errors.Errorf("mcp tool %s is not invokable", opts.ToolName)
		}
		return &MCPResolver{opts: opts, tool: it}, nil
	}
	return nil, errors.Errorf("mcp tool %q not found", opts.ToolName)
}

func (r *MCPResolver) Resolve(ctx context.Context, input, prompt string) (string, error) {
	args, err := json.Marshal(map[string]string{r.opts.InputArg: input, r.opts.PromptArg: prompt})
	if err != nil {
		return "", err
	}
	out, err := r.tool.InvokableRun(ctx, string(args))
	if err != nil {
		return "", errors.Wrapf(err, "call mcp tool %s", r.opts.ToolName)
	}
	return decodeToolText(out)
}

type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// decodeToolText joins the text contents of a marshaled CallToolResult.
// Output that is not a CallToolResult is returned as is.
func decodeToolText(out string) (string, error) {
	var res callToolResult
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Content == nil {
		return out, nil
	}
	var texts []string
	for _, c := range res.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		} else {
			log.Debug("mcp resolver: skipping %s content", c.Type)
		}
	}
	text := strings.Join(texts, "\n")
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}
