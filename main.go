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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/textflow/internal/config"
	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/internal/store"
	"github.com/cloudwego/textflow/llm"
	"github.com/cloudwego/textflow/llm/prompt"
	"github.com/cloudwego/textflow/llm/tool"
	"github.com/cloudwego/textflow/version"
)

var (
	flagConfig   string
	flagVerbose  bool
	flagStore    string
	flagInMemory bool
	flagResolver string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "textflow",
		Short: "Compose text, JSON and XML transforms into pipelines",
		Long: `textflow runs a source text through an ordered list of transform blocks
(escape, parse, select, split, case, AI rewrite...) and shows every stage.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of textflow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.Version)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default textflow.yaml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose mode")
	pf.StringVar(&flagStore, "store", "", "saved-pipeline store directory")
	pf.BoolVar(&flagInMemory, "in-memory", false, "keep saved pipelines in memory only")
	pf.StringVar(&flagResolver, "resolver", "", "AI block resolver: none, llm or mcp")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{}
	if flagVerbose {
		overrides["log.level"] = "debug"
	}
	if flagStore != "" {
		overrides["store.path"] = flagStore
	}
	if flagInMemory {
		overrides["store.in_memory"] = true
	}
	if flagResolver != "" {
		overrides["resolver"] = flagResolver
	}
	c, err := config.Load(flagConfig, overrides)
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return errors.Wrap(err, "log.level")
	}
	log.SetLogLevel(lvl)
	cfg = c
	return nil
}

// openLibrary opens the configured badger store. The closer must be called
// before exit so badger can flush.
func openLibrary() (*store.Library, io.Closer, error) {
	bc := store.DefaultBadgerConfig(cfg.Store.Path)
	if cfg.Store.InMemory {
		bc = store.InMemoryBadgerConfig()
	}
	bc.SyncWrites = cfg.Store.SyncWrites
	bc.GCInterval = cfg.Store.GCInterval
	kv, err := store.OpenBadger(bc)
	if err != nil {
		return nil, nil, err
	}
	return store.NewLibrary(kv), kv, nil
}

// newResolver builds the configured AI resolver; nil means AI blocks stay
// unresolved.
func newResolver(ctx context.Context) (pipeline.Resolver, io.Closer, error) {
	switch cfg.Resolver {
	case config.ResolverLLM:
		opts := llm.TransformerOptions{MaxChars: cfg.LLM.MaxChars}
		if cfg.LLM.SystemPrompt != "" {
			tpl, err := prompt.LoadTemplatePrompt(cfg.LLM.SystemPrompt)
			if err != nil {
				return nil, nil, err
			}
			opts.SystemPrompt = tpl
		}
		t, err := llm.NewTransformerFromConfig(ctx, cfg.LLM.ModelConfig, opts)
		if err != nil {
			return nil, nil, err
		}
		return t, nopCloser{}, nil
	case config.ResolverMCP:
		cli, err := tool.NewMCPClient(cfg.MCP.MCPConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := cli.Start(ctx); err != nil {
			cli.Close()
			return nil, nil, errors.Wrap(err, "start mcp client")
		}
		r, err := tool.NewMCPResolver(ctx, cli, cfg.MCP.MCPResolverOptions)
		if err != nil {
			cli.Close()
			return nil, nil, err
		}
		return r, cli, nil
	}
	return nil, nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
