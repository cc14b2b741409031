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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	replies []string
	errs    []error
	calls   int
	last    []*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := m.calls
	m.calls++
	m.last = input
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return schema.AssistantMessage(m.replies[i], nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func newTestTransformer(t *testing.T, m *scriptedModel, retries int) *Transformer {
	tr, err := NewTransformer(context.Background(), m, TransformerOptions{Retries: retries, Timeout: time.Second})
	require.NoError(t, err)
	tr.backoff = func(int) time.Duration { return 0 }
	return tr
}

func TestTransformerResolve(t *testing.T) {
	m := &scriptedModel{replies: []string{"  BONJOUR \n"}}
	tr := newTestTransformer(t, m, 0)
	out, err := tr.Resolve(context.Background(), "hello", "translate to French")
	require.NoError(t, err)
	assert.Equal(t, "BONJOUR", out)

	require.Len(t, m.last, 2)
	assert.Equal(t, schema.System, m.last[0].Role)
	assert.Contains(t, m.last[0].Content, "translate to French")
	assert.Equal(t, schema.User, m.last[1].Role)
	assert.Equal(t, "hello", m.last[1].Content)
}

func TestTransformerRetries(t *testing.T) {
	m := &scriptedModel{
		errs:    []error{errors.New("read tcp: connection reset by peer"), errors.New("503 service unavailable")},
		replies: []string{"", "", "ok"},
	}
	out, err := newTestTransformer(t, m, 2).Resolve(context.Background(), "x", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, m.calls)

	m = &scriptedModel{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	_, err = newTestTransformer(t, m, 1).Resolve(context.Background(), "x", "p")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed after 2 attempts"))
	assert.Equal(t, 2, m.calls)
}

func TestTransformerNonRetryable(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("invalid api key")}}
	_, err := newTestTransformer(t, m, 3).Resolve(context.Background(), "x", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1, m.calls)
}

func TestTransformerEmptyReply(t *testing.T) {
	m := &scriptedModel{replies: []string{"   "}}
	_, err := newTestTransformer(t, m, 0).Resolve(context.Background(), "x", "p")
	assert.True(t, errors.Is(err, ErrEmptyReply))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, 10*time.Second, backoff(8))
}

func TestNewModelType(t *testing.T) {
	assert.Equal(t, ModelTypeDashScope, NewModelType("Qwen"))
	assert.Equal(t, ModelTypeClaude, NewModelType("anthropic"))
	assert.Equal(t, ModelTypeUnknown, NewModelType("nope"))

	_, err := NewChatModel(context.Background(), ModelConfig{APIType: "nope"})
	assert.Error(t, err)
}
