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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/llm/tool"
)

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type stdioConn struct {
	t       *testing.T
	in      *io.PipeWriter
	scanner *bufio.Scanner
	nextID  int
}

func (c *stdioConn) call(method string, params any) rpcResponse {
	c.nextID++
	requestBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		c.t.Fatal(err)
	}
	if _, err := c.in.Write(append(requestBytes, '\n')); err != nil {
		c.t.Fatal(err)
	}
	if !c.scanner.Scan() {
		c.t.Fatal("failed to read response")
	}
	var resp rpcResponse
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		c.t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID != c.nextID {
		c.t.Fatalf("response id = %d, want %d", resp.ID, c.nextID)
	}
	return resp
}

func startServer(t *testing.T, opts ServerOptions) *stdioConn {
	svr := NewServer(opts)
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- svr.ServeStdio(ctx, stdinReader, stdoutWriter)
		stdoutWriter.Close()
	}()
	t.Cleanup(func() {
		cancel()
		stdinWriter.Close()
		if err := <-serverErrCh; err != nil {
			t.Errorf("unexpected server error: %v", err)
		}
	})

	scanner := bufio.NewScanner(stdoutReader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &stdioConn{t: t, in: stdinWriter, scanner: scanner}
}

func TestPipelineServer(t *testing.T) {
	log.SetLogLevel(log.DebugLevel)
	conn := startServer(t, ServerOptions{
		ServerName:    "textflow",
		ServerVersion: "test",
		PipelineToolsOptions: tool.PipelineToolsOptions{
			Library: store.NewLibrary(store.NewMemoryKV()),
		},
	})

	resp := conn.call("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	})
	if resp.Error != nil || !strings.Contains(string(resp.Result), `"textflow"`) {
		t.Fatalf("initialize: %s", resp.Result)
	}

	resp = conn.call("tools/list", map[string]any{})
	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Tools) != 4 {
		t.Fatalf("tools = %+v, want 4", list.Tools)
	}

	resp = conn.call("tools/call", map[string]any{
		"name": tool.ToolEvaluatePipeline,
		"arguments": map[string]any{
			"source_input": "a|b",
			"blocks": []any{
				map[string]any{"kind": "SPLIT", "config": map[string]any{"separator": "|"}},
				map[string]any{"kind": "SELECT_FIELD", "config": map[string]any{"path": "1"}},
				map[string]any{"kind": "TRANSFORM_UPPERCASE"},
			},
		},
	})
	var call struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &call); err != nil {
		t.Fatal(err)
	}
	if call.IsError || len(call.Content) != 1 {
		t.Fatalf("tools/call: %s", resp.Result)
	}
	var out tool.EvaluatePipelineResp
	if err := json.Unmarshal([]byte(call.Content[0].Text), &out); err != nil {
		t.Fatal(err)
	}
	if out.FinalOutput != "B" {
		t.Errorf("final output = %q, want B", out.FinalOutput)
	}

	resp = conn.call("prompts/get", map[string]any{
		"name":      PromptTransformText,
		"arguments": map[string]any{"instruction": "reverse the words"},
	})
	if resp.Error != nil || !strings.Contains(string(resp.Result), "reverse the words") {
		t.Errorf("prompts/get: %s", resp.Result)
	}
}
