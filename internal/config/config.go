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

// Package config loads textflow.yaml, TEXTFLOW_* environment variables and
// command line overrides into one Config.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cloudwego/textflow/llm"
	"github.com/cloudwego/textflow/llm/tool"
)

const (
	EnvPrefix = "TEXTFLOW"
	FileName  = "textflow"
)

type ResolverType string

const (
	ResolverNone ResolverType = "none"
	ResolverLLM  ResolverType = "llm"
	ResolverMCP  ResolverType = "mcp"
)

type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Store struct {
		Path       string        `mapstructure:"path"`
		InMemory   bool          `mapstructure:"in_memory"`
		SyncWrites bool          `mapstructure:"sync_writes"`
		GCInterval time.Duration `mapstructure:"gc_interval"`
	} `mapstructure:"store"`
	History struct {
		Limit int `mapstructure:"limit"`
	} `mapstructure:"history"`
	Debounce struct {
		Input   time.Duration `mapstructure:"input"`
		History time.Duration `mapstructure:"history"`
	} `mapstructure:"debounce"`
	Resolver ResolverType `mapstructure:"resolver"`
	LLM      struct {
		llm.ModelConfig `mapstructure:",squash"`
		// SystemPrompt is a text/template file replacing the built-in system prompt.
		SystemPrompt string `mapstructure:"system_prompt"`
		MaxChars     int    `mapstructure:"max_chars"`
	} `mapstructure:"llm"`
	MCP struct {
		tool.MCPConfig          `mapstructure:",squash"`
		tool.MCPResolverOptions `mapstructure:",squash"`
	} `mapstructure:"mcp"`
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "textflow", "store")
	}
	return ".textflow"
}

// every key needs a default so that TEXTFLOW_* variables reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.sync_writes", false)
	v.SetDefault("store.gc_interval", 10*time.Minute)
	v.SetDefault("history.limit", 0)
	v.SetDefault("debounce.input", 150*time.Millisecond)
	v.SetDefault("debounce.history", 500*time.Millisecond)
	v.SetDefault("resolver", string(ResolverNone))

	v.SetDefault("llm.name", "")
	v.SetDefault("llm.type", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model_name", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retries", 2)
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.max_chars", 0)

	v.SetDefault("mcp.type", string(tool.MCPTypeStdio))
	v.SetDefault("mcp.command", "")
	v.SetDefault("mcp.args", []string{})
	v.SetDefault("mcp.envs", []string{})
	v.SetDefault("mcp.sse_url", "")
	v.SetDefault("mcp.tool", "")
	v.SetDefault("mcp.input_arg", "input")
	v.SetDefault("mcp.prompt_arg", "prompt")
}

// Load reads path, or textflow.yaml from the working directory and the user
// config directory when path is empty. A missing default file is not an
// error. overrides win over everything else.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "textflow"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	c.LLM.APIType = llm.NewModelType(string(c.LLM.APIType))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Resolver {
	case ResolverNone, "":
		c.Resolver = ResolverNone
	case ResolverLLM:
		if c.LLM.APIType == llm.ModelTypeUnknown {
			return errors.New("resolver llm needs llm.type")
		}
	case ResolverMCP:
		if c.MCP.ToolName == "" {
			return errors.New("resolver mcp needs mcp.tool")
		}
	default:
		return errors.Errorf("unknown resolver %q", c.Resolver)
	}
	if c.History.Limit < 0 {
		return errors.New("history.limit must not be negative")
	}
	return nil
}
