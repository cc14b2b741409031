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

// Package llm backs AI_PROCESS blocks with a chat model.
package llm

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
)

type ModelConfig struct {
	Name        string    `json:"name" mapstructure:"name"` // alias of the config, not endpoint!
	APIType     ModelType `json:"type" mapstructure:"type"`
	BaseURL     string    `json:"base_url" mapstructure:"base_url"`
	APIKey      string    `json:"api_key" mapstructure:"api_key"`
	ModelName   string    `json:"model_name" mapstructure:"model_name"` // the endpoint of the model, like `gpt-4o-mini`
	Temperature *float32  `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int       `json:"max_tokens" mapstructure:"max_tokens"`
	// Timeout bounds one attempt, default: 60s
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// Retries on retryable failures, default: 2
	Retries int `json:"retries" mapstructure:"retries"`
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	}
	return ModelTypeUnknown
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope"
	ModelTypeDeepSeek  ModelType = "deepseek"
)

// ChatModel is the interface for making LLM backend.
type ChatModel interface {
	model.BaseChatModel
}
