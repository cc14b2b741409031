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

// Package mcp serves the pipeline tools over the Model Context Protocol.
package mcp

import (
	"context"
	"io"
	stdlog "log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/llm/tool"
)

type Tool struct {
	mcp.Tool
	Handler server.ToolHandlerFunc
}

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Verbose       bool
	tool.PipelineToolsOptions
}

type Server struct {
	*server.MCPServer
	opts ServerOptions
}

func NewServer(opts ServerOptions) *Server {
	svr := server.NewMCPServer(opts.ServerName, opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range getPipelineTools(opts.PipelineToolsOptions) {
		svr.AddTool(t.Tool, t.Handler)
	}
	svr.AddPrompt(mcp.NewPrompt(PromptTransformText,
		mcp.WithPromptDescription("the system prompt an AI block sends with its instruction"),
		mcp.WithArgument("instruction", mcp.ArgumentDescription("what the block should do to its input"), mcp.RequiredArgument()),
	), handleTransformPrompt)
	return &Server{MCPServer: svr, opts: opts}
}

// ServeStdio serves JSON-RPC on in/out until ctx is done or in is closed.
// Log output must not go to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.MCPServer)
	var w io.Writer = io.Discard
	if s.opts.Verbose {
		w = log.Logger().WriterLevel(log.ErrorLevel)
	}
	stdio.SetErrorLogger(stdlog.New(w, "", 0))
	log.Info("mcp server %s %s listening on stdio", s.opts.ServerName, s.opts.ServerVersion)
	err := stdio.Listen(ctx, in, out)
	if err == context.Canceled || err == io.EOF {
		return nil
	}
	return err
}
