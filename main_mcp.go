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

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/llm/mcp"
	"github.com/cloudwego/textflow/llm/tool"
	"github.com/cloudwego/textflow/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline tools as an MCP server over stdio",
	Args:  cobra.NoArgs,
	RunE:  serveMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func serveMCP(cmd *cobra.Command, args []string) error {
	// stdout carries JSON-RPC
	log.SetOutput(os.Stderr)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, libCloser, err := openLibrary()
	if err != nil {
		return err
	}
	defer libCloser.Close()
	r, rCloser, err := newResolver(ctx)
	if err != nil {
		return err
	}
	defer rCloser.Close()

	svr := mcp.NewServer(mcp.ServerOptions{
		ServerName:    "textflow",
		ServerVersion: version.Version,
		Verbose:       flagVerbose,
		PipelineToolsOptions: tool.PipelineToolsOptions{
			Library:  lib,
			Resolver: r,
		},
	})
	return svr.ServeStdio(ctx, os.Stdin, os.Stdout)
}
