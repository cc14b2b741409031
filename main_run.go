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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/internal/utils"
	"github.com/cloudwego/textflow/internal/workspace"
	"github.com/cloudwego/textflow/transform"
)

var (
	flagInput     string
	flagResolveAI bool
	flagJSON      bool

	runCmd = &cobra.Command{
		Use:   "run <pipeline file>",
		Short: "Evaluate a pipeline file (JSON or YAML) and print every stage",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipeline,
	}

	watchCmd = &cobra.Command{
		Use:   "watch <pipeline file>",
		Short: "Re-evaluate whenever the pipeline or input file changes, printing changed stages",
		Args:  cobra.ExactArgs(1),
		RunE:  watchPipeline,
	}
)

func init() {
	runCmd.Flags().StringVarP(&flagInput, "input", "i", "", "read the source input from this file (- for stdin)")
	runCmd.Flags().BoolVar(&flagResolveAI, "resolve-ai", false, "resolve AI blocks with the configured resolver")
	runCmd.Flags().BoolVar(&flagJSON, "json", false, "print the evaluation as JSON")
	watchCmd.Flags().StringVarP(&flagInput, "input", "i", "", "watch this file as the source input")
	rootCmd.AddCommand(runCmd, watchCmd)
}

// positionalIDs names blocks by position so reloading an unchanged file keeps
// its ids and the change detection meaningful.
func positionalIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		bs, err := io.ReadAll(stdin)
		return string(bs), err
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read input %s", path)
	}
	return string(bs), nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := store.LoadPipelineFile(args[0])
	if err != nil {
		return err
	}
	source := f.SourceInput
	if flagInput != "" {
		if source, err = readInput(flagInput, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	var r pipeline.Resolver
	if flagResolveAI {
		res, closer, err := newResolver(ctx)
		if err != nil {
			return err
		}
		defer closer.Close()
		r = res
	}

	ev, err := pipeline.NewEvaluator(nil).Run(ctx, source, store.AssignIDs(f.Blocks, positionalIDs()), r)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), ev)
	}
	printEvaluation(cmd.OutOrStdout(), ev, false)
	return nil
}

func watchPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelinePath, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	f, err := store.LoadPipelineFile(pipelinePath)
	if err != nil {
		return err
	}
	source := f.SourceInput
	var inputPath string
	if flagInput != "" {
		if inputPath, err = filepath.Abs(flagInput); err != nil {
			return err
		}
		if source, err = readInput(inputPath, nil); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	first := true
	ws := workspace.New(source, workspace.Options{
		EvalDebounce:    cfg.Debounce.Input,
		HistoryDebounce: cfg.Debounce.History,
		HistoryLimit:    cfg.History.Limit,
		OnEvaluated: func(ev pipeline.Evaluation) {
			mu.Lock()
			defer mu.Unlock()
			if len(ev.Blocks) == 0 && first {
				return
			}
			printEvaluation(out, ev, !first)
			first = false
		},
	})
	defer ws.Close()
	if _, err := ws.ReplaceBlocks(store.AssignIDs(f.Blocks, positionalIDs())); err != nil {
		return err
	}

	files := []string{pipelinePath}
	if inputPath != "" {
		files = append(files, inputPath)
	}
	watcher, err := utils.WatchFiles(files, func(file string) {
		switch file {
		case pipelinePath:
			f, err := store.LoadPipelineFile(file)
			if err != nil {
				log.Error("reload pipeline: %v", err)
				return
			}
			log.Info("pipeline %s changed", filepath.Base(file))
			if _, err := ws.ReplaceBlocks(store.AssignIDs(f.Blocks, positionalIDs())); err != nil {
				log.Error("reload pipeline: %v", err)
				return
			}
			if inputPath == "" {
				ws.SetSourceInput(f.SourceInput)
			}
		case inputPath:
			text, err := readInput(file, nil)
			if err != nil {
				log.Error("reload input: %v", err)
				return
			}
			ws.SetSourceInput(text)
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	log.Info("watching %v, press Ctrl-C to stop", files)
	<-ctx.Done()
	return nil
}

// printEvaluation writes each stage; onlyChanged limits it to the blocks the
// evaluation reported as changed.
func printEvaluation(w io.Writer, ev pipeline.Evaluation, onlyChanged bool) {
	if !onlyChanged {
		fmt.Fprintf(w, "=== source ===\n%s\n", ev.SourceInput)
	}
	for i, b := range ev.Blocks {
		if onlyChanged && !ev.Changed.Has(b.ID) {
			continue
		}
		fmt.Fprintf(w, "=== [%d] %s %s (%s) ===\n%s\n", i+1, b.Kind, b.ID, b.Output.Type, b.Output.Text())
	}
}

type blockView struct {
	ID     string           `json:"id"`
	Kind   transform.Kind   `json:"kind"`
	Config json.RawMessage  `json:"config"`
	Output transform.Result `json:"output"`
}

type evaluationView struct {
	SourceInput string          `json:"sourceInput"`
	Blocks      []blockView     `json:"blocks"`
	FinalOutput json.RawMessage `json:"finalOutput"`
}

func printJSON(w io.Writer, ev pipeline.Evaluation) error {
	view := evaluationView{SourceInput: ev.SourceInput, Blocks: make([]blockView, 0, len(ev.Blocks))}
	for _, b := range ev.Blocks {
		raw, err := transform.MarshalConfig(b.Config)
		if err != nil {
			return err
		}
		view.Blocks = append(view.Blocks, blockView{ID: b.ID, Kind: b.Kind, Config: raw, Output: b.Output})
	}
	final, ok := transform.EncodeJSON(ev.Pipeline().FinalOutput())
	if !ok {
		final = "null"
	}
	view.FinalOutput = json.RawMessage(final)
	s, err := utils.MarshalJSONIndent(view)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}
