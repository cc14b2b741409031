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
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/internal/utils"
	"github.com/cloudwego/textflow/transform"
)

var (
	savedCmd = &cobra.Command{
		Use:   "saved",
		Short: "Manage saved pipelines",
	}
	savedListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved pipelines, newest first",
		Args:  cobra.NoArgs,
		RunE:  withLibrary(listSaved),
	}
	savedShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved pipeline as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  withLibrary(showSaved),
	}
	savedDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: withLibrary(func(cmd *cobra.Command, lib *store.Library, args []string) error {
			return lib.Delete(cmd.Context(), args[0])
		}),
	}
	savedRunCmd = &cobra.Command{
		Use:   "run <id>",
		Short: "Evaluate a saved pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  withLibrary(runSaved),
	}
	savedImportCmd = &cobra.Command{
		Use:   "import <file> [name]",
		Short: "Save a pipeline file (JSON or YAML) into the library",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  withLibrary(importSaved),
	}

	kindsCmd = &cobra.Command{
		Use:   "kinds",
		Short: "List the available block kinds",
		Args:  cobra.NoArgs,
		RunE:  listKinds,
	}
)

func init() {
	savedRunCmd.Flags().StringVarP(&flagInput, "input", "i", "", "read the source input from this file (- for stdin)")
	savedRunCmd.Flags().BoolVar(&flagResolveAI, "resolve-ai", false, "resolve AI blocks with the configured resolver")
	savedRunCmd.Flags().BoolVar(&flagJSON, "json", false, "print the evaluation as JSON")
	savedCmd.AddCommand(savedListCmd, savedShowCmd, savedDeleteCmd, savedRunCmd, savedImportCmd)
	rootCmd.AddCommand(savedCmd, kindsCmd)
}

func withLibrary(fn func(cmd *cobra.Command, lib *store.Library, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		lib, closer, err := openLibrary()
		if err != nil {
			return err
		}
		defer closer.Close()
		return fn(cmd, lib, args)
	}
}

func listSaved(cmd *cobra.Command, lib *store.Library, args []string) error {
	list, err := lib.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBLOCKS\tCREATED")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, len(p.Blocks), p.Created().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func showSaved(cmd *cobra.Command, lib *store.Library, args []string) error {
	p, err := lib.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	s, err := utils.MarshalJSONIndent(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

func runSaved(cmd *cobra.Command, lib *store.Library, args []string) error {
	ctx := cmd.Context()
	p, err := lib.Get(ctx, args[0])
	if err != nil {
		return err
	}
	source := p.SourceInput
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
	ev, err := pipeline.NewEvaluator(nil).Run(ctx, source, p.Blocks, r)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), ev)
	}
	printEvaluation(cmd.OutOrStdout(), ev, false)
	return nil
}

func importSaved(cmd *cobra.Command, lib *store.Library, args []string) error {
	f, err := store.LoadPipelineFile(args[0])
	if err != nil {
		return err
	}
	name := f.Name
	if len(args) > 1 {
		name = args[1]
	}
	rec, err := lib.Save(cmd.Context(), store.SaveRequest{
		Name:        name,
		SourceInput: f.SourceInput,
		Blocks:      store.AssignIDs(f.Blocks, newBlockID),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
	return nil
}

func listKinds(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLABEL\tDEFAULT CONFIG\tDESCRIPTION")
	for _, s := range transform.Default.Kinds() {
		raw, err := transform.MarshalConfig(s.Default)
		if err != nil {
			return err
		}
		label := s.Label
		if s.Async {
			label += " (async)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Kind, label, raw, s.Description)
	}
	return tw.Flush()
}
