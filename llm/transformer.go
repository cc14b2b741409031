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

package llm

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/llm/prompt"
)

// ErrEmptyReply is returned when the model answers with blank content.
var ErrEmptyReply = errors.New("AI produced no output.")

var _ pipeline.Resolver = (*Transformer)(nil)

// Transformer resolves AI blocks by sending the block prompt as the system
// message and the upstream text as the user message.
type Transformer struct {
	runner   compose.Runnable[[]*schema.Message, *schema.Message]
	opts     TransformerOptions
	backoff  func(attempt int) time.Duration
	sleepCtx func(ctx context.Context, d time.Duration) error
}

type TransformerOptions struct {
	// SystemPrompt overrides the built-in system prompt template.
	SystemPrompt *template.Template
	// MaxChars asks the model to keep replies short; zero means no limit.
	MaxChars int
	Retries  int           // Number of retries on retryable failures
	Timeout  time.Duration // Timeout of one attempt
}

// NewTransformer compiles cm into a single-node chain.
func NewTransformer(ctx context.Context, cm ChatModel, opts TransformerOptions) (*Transformer, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(cm)
	runner, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile transform chain")
	}
	return &Transformer{runner: runner, opts: opts, backoff: backoff, sleepCtx: sleepCtx}, nil
}

// NewTransformerFromConfig builds the chat model described by m and wraps it.
func NewTransformerFromConfig(ctx context.Context, m ModelConfig, opts TransformerOptions) (*Transformer, error) {
	m.setDefaults()
	cm, err := NewChatModel(ctx, m)
	if err != nil {
		return nil, err
	}
	if opts.Retries == 0 {
		opts.Retries = m.Retries
	}
	if opts.Timeout == 0 {
		opts.Timeout = m.Timeout
	}
	return NewTransformer(ctx, cm, opts)
}

// backoff waits 1s, 2s, 4s... capped at 10s.
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (t *Transformer) Resolve(ctx context.Context, input, instruction string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(prompt.Transform(t.opts.SystemPrompt, instruction, t.opts.MaxChars).String()),
		schema.UserMessage(input),
	}
	log.Debug("[User] %s", input)

	var lastErr error
	for attempt := 0; attempt <= t.opts.Retries; attempt++ {
		if attempt > 0 {
			log.Info("Retrying LLM call (attempt %d/%d)...", attempt+1, t.opts.Retries+1)
			if err := t.sleepCtx(ctx, t.backoff(attempt)); err != nil {
				return "", err
			}
		}
		out, err := t.call(ctx, msgs)
		if err == nil {
			text := strings.TrimSpace(out.Content)
			if text == "" {
				return "", ErrEmptyReply
			}
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			log.Error("Non-retryable error occurred: %v", err)
			return "", errors.Wrap(err, "AI transform")
		}
		log.Info("Retryable error occurred (attempt %d/%d): %v", attempt+1, t.opts.Retries+1, err)
	}
	return "", errors.Wrap(fmt.Errorf("failed after %d attempts: %w", t.opts.Retries+1, lastErr), "AI transform")
}

func (t *Transformer) call(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()
	return t.runner.Invoke(ctx, msgs, compose.WithCallbacks(CallbackHandler{}))
}

var retryableMarks = []string{
	"timeout",
	"connection reset",
	"connection refused",
	"operation timed out",
	"context deadline exceeded",
	"read tcp",
	"write tcp",
	"429",
	"502",
	"503",
}

func isRetryable(err error) bool {
	s := err.Error()
	for _, m := range retryableMarks {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CallbackHandler logs model runs at debug level.
type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	log.Debug("<OnStart> %s/%s", info.Component, info.Name)
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	log.Debug("<OnEnd> %s/%s OUTPUT: %v", info.Component, info.Name, output)
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError> %s/%s ERROR: %v", info.Component, info.Name, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
