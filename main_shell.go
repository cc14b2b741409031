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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/internal/utils"
	"github.com/cloudwego/textflow/internal/workspace"
	"github.com/cloudwego/textflow/transform"
)

var newBlockID = uuid.NewString

const shellHelp = `commands:
   add KIND                  append a block with the kind's default config
   rm REF                    remove a block (REF is #n, an id or an id prefix)
   mv REF N                  move a block to position N (1-based)
   set REF JSON              replace a block config, e.g. set #2 {"path":"a.b"}
   reset REF                 restore a block's default config
   input TEXT                replace the source input (quoted strings are unescaped)
   resolve REF               run an AI block through the configured resolver
   undo | redo               walk the edit history
   show                      print every stage
   clear                     remove all blocks
   save NAME | save! NAME    save (in place | as a new pipeline)
   load ID | delete ID       open or delete a saved pipeline
   list                      list saved pipelines
   export [FILE]             write the export payload (stdout by default)
   import FILE               replace the pipeline from an export or pipeline file
   kinds                     list block kinds
   help | quit
`

var shellCmd = &cobra.Command{
	Use:   "shell [pipeline file]",
	Short: "Edit a pipeline interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

type shell struct {
	ws  *workspace.Workspace
	lib *store.Library
	out io.Writer
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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

	sh := newShell(cmd.OutOrStdout(), lib, r)
	defer sh.ws.Close()
	if len(args) == 1 {
		f, err := store.LoadPipelineFile(args[0])
		if err != nil {
			return err
		}
		sh.ws.Import(store.ExportPayload{SourceInput: f.SourceInput, Blocks: f.Blocks})
	}
	fmt.Fprint(sh.out, shellHelp)
	return sh.loop(ctx, cmd.InOrStdin())
}

func newShell(out io.Writer, lib *store.Library, r pipeline.Resolver) *shell {
	sh := &shell{lib: lib, out: out}
	sh.ws = workspace.New("", workspace.Options{
		Resolver:        r,
		Library:         lib,
		EvalDebounce:    cfg.Debounce.Input,
		HistoryDebounce: cfg.Debounce.History,
		HistoryLimit:    cfg.History.Limit,
		NewID:           newBlockID,
		OnDetach: func(id string) {
			fmt.Fprintf(out, "(detached from saved pipeline %s)\n", id)
		},
	})
	return sh
}

func (sh *shell) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := sh.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one command line. Debounced work is flushed afterwards so every
// command prints a settled state.
func (sh *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	verb, rest, _ := strings.Cut(line, " ")
	verb, rest = strings.ToLower(verb), strings.TrimSpace(rest)
	ws := sh.ws
	defer ws.Flush()

	switch verb {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
	case "kinds":
		for _, s := range transform.Default.Kinds() {
			fmt.Fprintf(sh.out, "%-20s %s\n", s.Kind, s.Description)
		}
	case "show":
		sh.show()
	case "add":
		if rest == "" {
			return false, errors.New("usage: add KIND")
		}
		kind := transform.Kind(strings.ToUpper(rest))
		if _, ok := transform.Default.Lookup(kind); !ok {
			fmt.Fprintf(sh.out, "(unknown kind %s passes its input through)\n", kind)
		}
		id, ev := ws.AddBlock(kind)
		sh.printChanged(ev)
		fmt.Fprintf(sh.out, "added %s\n", id)
	case "rm":
		id, err := sh.ref(rest)
		if err != nil {
			return false, err
		}
		ev, err := ws.RemoveBlock(id)
		if err != nil {
			return false, err
		}
		sh.printChanged(ev)
	case "mv":
		ref, pos, _ := strings.Cut(rest, " ")
		id, err := sh.ref(ref)
		if err != nil {
			return false, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(pos))
		if err != nil {
			return false, errors.New("usage: mv REF N")
		}
		ev, err := ws.ReorderBlock(id, n-1)
		if err != nil {
			return false, err
		}
		sh.printChanged(ev)
	case "set", "reset":
		ref, raw, _ := strings.Cut(rest, " ")
		id, err := sh.ref(ref)
		if err != nil {
			return false, err
		}
		var c transform.Config
		if verb == "set" {
			if c, err = transform.DecodeConfig(sh.kindOf(id), []byte(strings.TrimSpace(raw))); err != nil {
				return false, err
			}
		}
		ev, err := ws.UpdateBlockConfig(id, c)
		if err != nil {
			return false, err
		}
		sh.printChanged(ev)
	case "input":
		text := rest
		if unq, err := strconv.Unquote(rest); err == nil {
			text = unq
		}
		ws.SetSourceInput(text)
		ws.Flush()
		fmt.Fprintln(sh.out, finalText(ws.FinalOutput()))
	case "resolve":
		id, err := sh.ref(rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, "resolving...")
		ev, err := ws.Resolve(ctx, id)
		if err != nil {
			return false, err
		}
		sh.printChanged(ev)
	case "undo", "redo":
		move := ws.Undo
		if verb == "redo" {
			move = ws.Redo
		}
		if _, ok := move(); !ok {
			fmt.Fprintf(sh.out, "nothing to %s\n", verb)
			return false, nil
		}
		sh.show()
	case "clear":
		ws.Clear()
		sh.show()
	case "save", "save!":
		rec, err := ws.Save(ctx, rest, verb == "save!")
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.out, "saved %q as %s\n", rec.Name, rec.ID)
	case "load":
		if _, err := ws.Load(ctx, rest); err != nil {
			return false, err
		}
		sh.show()
	case "delete":
		return false, ws.DeleteSaved(ctx, rest)
	case "list":
		list, err := sh.lib.List(ctx)
		if err != nil {
			return false, err
		}
		active := ws.ActiveSavedID()
		for _, p := range list {
			mark := " "
			if p.ID == active {
				mark = "*"
			}
			fmt.Fprintf(sh.out, "%s %s  %-24s %d blocks\n", mark, p.ID, p.Name, len(p.Blocks))
		}
	case "export":
		return false, sh.export(rest)
	case "import":
		f, err := store.LoadPipelineFile(rest)
		if err != nil {
			return false, err
		}
		ws.Import(store.ExportPayload{SourceInput: f.SourceInput, Blocks: f.Blocks})
		sh.show()
	default:
		return false, errors.Errorf("unknown command %q, try help", verb)
	}
	return false, nil
}

// ref resolves #n (1-based), an exact id or a unique id prefix.
func (sh *shell) ref(s string) (string, error) {
	blocks := sh.ws.Pipeline().Blocks
	if strings.HasPrefix(s, "#") {
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 1 || n > len(blocks) {
			return "", errors.Errorf("no block %s", s)
		}
		return blocks[n-1].ID, nil
	}
	var match string
	for _, b := range blocks {
		if b.ID == s {
			return s, nil
		}
		if s != "" && strings.HasPrefix(b.ID, s) {
			if match != "" {
				return "", errors.Errorf("block %s is ambiguous", s)
			}
			match = b.ID
		}
	}
	if match == "" {
		return "", errors.Wrap(pipeline.ErrBlockNotFound, s)
	}
	return match, nil
}

func (sh *shell) kindOf(id string) transform.Kind {
	for _, b := range sh.ws.Pipeline().Blocks {
		if b.ID == id {
			return b.Kind
		}
	}
	return ""
}

func (sh *shell) show() {
	p := sh.ws.Pipeline()
	printEvaluation(sh.out, pipeline.Evaluation{SourceInput: p.SourceInput, Blocks: p.Blocks}, false)
}

func (sh *shell) printChanged(ev pipeline.Evaluation) {
	if len(ev.Changed) == 0 {
		fmt.Fprintln(sh.out, "(no output changed)")
		return
	}
	printEvaluation(sh.out, ev, true)
}

func (sh *shell) export(path string) error {
	p := sh.ws.Export()
	s, err := utils.MarshalJSONIndent(p)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(sh.out, s)
		return nil
	}
	if err := os.WriteFile(path, []byte(s+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	fmt.Fprintf(sh.out, "exported to %s (suggested name %s)\n", path, store.ExportFileName(p.ExportedAt))
	return nil
}

func finalText(v transform.Value) string {
	return transform.Ok(v).Text()
}
