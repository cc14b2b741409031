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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/textflow/internal/config"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
)

func testShell(t *testing.T) (*shell, *bytes.Buffer) {
	cfg = &config.Config{}
	var out bytes.Buffer
	sh := newShell(&out, store.NewLibrary(store.NewMemoryKV()), nil)
	t.Cleanup(sh.ws.Close)
	return sh, &out
}

func run(t *testing.T, sh *shell, lines ...string) {
	for _, l := range lines {
		_, err := sh.exec(context.Background(), l)
		require.NoError(t, err, l)
	}
}

func TestShellSession(t *testing.T) {
	sh, out := testShell(t)
	run(t, sh,
		`input "a,b,c"`,
		"add split",
		`set #1 {"separator":","}`,
		"add select_field",
		`set #2 {"path":"2"}`,
		"add transform_uppercase",
	)
	assert.Equal(t, "C", sh.ws.FinalOutput())

	run(t, sh, "mv #3 1")
	assert.Equal(t, "TRANSFORM_UPPERCASE", string(sh.ws.Pipeline().Blocks[0].Kind))
	run(t, sh, "undo")
	assert.Equal(t, "SPLIT", string(sh.ws.Pipeline().Blocks[0].Kind))
	run(t, sh, "redo", "rm #1", "reset #1")
	// split per character, then pick index 2
	assert.Equal(t, "b", sh.ws.FinalOutput())

	out.Reset()
	run(t, sh, "save csv")
	assert.Contains(t, out.String(), `saved "csv"`)
	out.Reset()
	run(t, sh, "list")
	assert.True(t, strings.HasPrefix(out.String(), "* "))

	run(t, sh, "clear")
	assert.Contains(t, out.String(), "detached")
	assert.Empty(t, sh.ws.Pipeline().Blocks)

	_, err := sh.exec(context.Background(), "rm #1")
	assert.Error(t, err)
	_, err = sh.exec(context.Background(), "bogus")
	assert.Error(t, err)
	quit, err := sh.exec(context.Background(), "quit")
	assert.NoError(t, err)
	assert.True(t, quit)
}

func TestShellExportImport(t *testing.T) {
	sh, _ := testShell(t)
	run(t, sh, `input "<b>"`, "add escape")
	assert.Equal(t, "&lt;b&gt;", sh.ws.FinalOutput())

	path := filepath.Join(t.TempDir(), "p.json")
	run(t, sh, "export "+path)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var p store.ExportPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "<b>", p.SourceInput)
	assert.Empty(t, p.Blocks[0].ID)

	other, _ := testShell(t)
	run(t, other, "import "+path)
	assert.Equal(t, "&lt;b&gt;", other.ws.FinalOutput())
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sourceInput: '{"items":[{"n":"x"},{"n":"y"}]}'
blocks:
  - kind: PARSE_JSON
  - kind: SELECT_FIELD
    config: {path: "items[1].n"}
`), 0o644))

	cfg = &config.Config{}
	var out bytes.Buffer
	runCmd.SetOut(&out)
	runCmd.SetContext(context.Background())
	flagJSON, flagInput, flagResolveAI = true, "", false
	t.Cleanup(func() { flagJSON = false })
	require.NoError(t, runPipeline(runCmd, []string{path}))

	var view struct {
		Blocks []struct {
			ID     string `json:"id"`
			Output struct {
				ResultType string `json:"resultType"`
			} `json:"output"`
		} `json:"blocks"`
		FinalOutput string `json:"finalOutput"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	require.Len(t, view.Blocks, 2)
	assert.Equal(t, "b1", view.Blocks[0].ID)
	assert.Equal(t, "object", view.Blocks[0].Output.ResultType)
	assert.Equal(t, "y", view.FinalOutput)
}

func TestRunKeepsFileIDsUnique(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sourceInput":"ab","blocks":[`+
		`{"id":"b1","kind":"TRANSFORM_UPPERCASE"},{"kind":"SPLIT"}]}`), 0o644))

	cfg = &config.Config{}
	var out bytes.Buffer
	runCmd.SetOut(&out)
	runCmd.SetContext(context.Background())
	flagJSON, flagInput, flagResolveAI = true, "", false
	t.Cleanup(func() { flagJSON = false })
	require.NoError(t, runPipeline(runCmd, []string{path}))

	var view struct {
		Blocks []struct {
			ID string `json:"id"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	require.Len(t, view.Blocks, 2)
	assert.Equal(t, "b1", view.Blocks[0].ID)
	assert.Equal(t, "b2", view.Blocks[1].ID)

	require.NoError(t, os.WriteFile(path, []byte(`{"blocks":[{"id":"x","kind":"SPLIT"},{"id":"x","kind":"MINIFY"}]}`), 0o644))
	assert.ErrorIs(t, runPipeline(runCmd, []string{path}), pipeline.ErrDuplicateID)
}
