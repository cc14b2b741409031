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

package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownKindPassesThrough(t *testing.T) {
	obj := NewObject()
	obj.Set("a", 1.0)
	for _, in := range []Value{"text", 3.0, true, nil, []any{"x"}, obj} {
		res := Default.Evaluate("NO_SUCH_KIND", in, nil)
		assert.False(t, res.Failed())
		assert.True(t, Equal(in, res.Data))
		assert.Equal(t, TypeOf(in), res.Type)
	}
}

func TestEvaluateRecoversPanics(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Define("BOOM", "Boom", "", ParseJSONConfig{}, func(Value, ParseJSONConfig) (Value, error) {
		panic("kaboom")
	})))
	res := r.Evaluate("BOOM", "x", nil)
	assert.Equal(t, Result{Error: "kaboom", Type: TypeNull}, res)
}

func TestEvaluateError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Define("ERR", "Err", "", ParseJSONConfig{}, func(Value, ParseJSONConfig) (Value, error) {
		return nil, errors.New("bad input")
	})))
	res := r.Evaluate("ERR", "x", nil)
	assert.True(t, res.Failed())
	assert.Nil(t, res.Data)
	assert.Equal(t, TypeNull, res.Type)
	assert.Equal(t, "bad input", res.Error)
}

func TestRegisterTwice(t *testing.T) {
	r := NewDefaultRegistry()
	err := r.Register(Define(KindSplit, "Split", "", SplitConfig{}, split))
	assert.Error(t, err)
	assert.Error(t, r.Register(Spec{Kind: "RAW"}))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	for _, s := range Default.Kinds() {
		t.Run(string(s.Kind), func(t *testing.T) {
			in := `{"user":{"name":"Ada","tags":["a","b"]}}`
			a := Default.Evaluate(s.Kind, in, s.Default)
			b := Default.Evaluate(s.Kind, in, s.Default)
			assert.True(t, a.Equal(b))
		})
	}
}

func TestMismatchedConfigFallsBackToDefault(t *testing.T) {
	res := Default.Evaluate(KindSplit, "abc", CaseConfig{Mode: CaseLower})
	require.False(t, res.Failed())
	assert.Equal(t, []any{"a", "b", "c"}, res.Data)
}

func TestDefaultConfigs(t *testing.T) {
	assert.Equal(t, SelectFieldConfig{Path: ""}, Default.DefaultConfig(KindSelectField))
	assert.Equal(t, SplitConfig{Separator: ""}, Default.DefaultConfig(KindSplit))
	assert.Equal(t, EscapeConfig{Mode: ModeHTML}, Default.DefaultConfig(KindEscape))
	assert.Equal(t, AIConfig{}, Default.DefaultConfig(KindAIProcess))
	assert.Equal(t, RawConfig{For: "CUSTOM"}, Default.DefaultConfig("CUSTOM"))
	assert.True(t, Default.IsAsync(KindAIProcess))
	assert.False(t, Default.IsAsync(KindSplit))
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(KindSplit, []byte(`{"separator":","}`))
	require.NoError(t, err)
	assert.Equal(t, SplitConfig{Separator: ","}, cfg)

	cfg, err = DecodeConfig(KindEscape, nil)
	require.NoError(t, err)
	assert.Equal(t, EscapeConfig{Mode: ModeHTML}, cfg)

	cfg, err = DecodeConfig("PLUGIN", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, RawConfig{For: "PLUGIN", Raw: `{"x":1}`}, cfg)
	raw, err := MarshalConfig(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(raw))

	_, err = DecodeConfig(KindSplit, []byte(`{"separator":1}`))
	assert.Error(t, err)
}

func TestAIPlaceholderPassesThrough(t *testing.T) {
	res := Default.Evaluate(KindAIProcess, "hello", AIConfig{Prompt: "shout"})
	assert.Equal(t, Ok("hello"), res)
}

func TestEmptyErrorStillFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Define("SILENT", "Silent", "", ParseJSONConfig{}, func(Value, ParseJSONConfig) (Value, error) {
		return nil, errors.New("")
	})))
	require.NoError(t, r.Register(Define("SILENT_PANIC", "Silent panic", "", ParseJSONConfig{}, func(Value, ParseJSONConfig) (Value, error) {
		panic("")
	})))
	for _, kind := range []Kind{"SILENT", "SILENT_PANIC"} {
		res := r.Evaluate(kind, "x", nil)
		assert.True(t, res.Failed(), kind)
		assert.Nil(t, res.Data)
		assert.Equal(t, "transform failed", res.Error)
	}
	assert.True(t, Fail(nil).Failed())
}

type tagsConfig struct {
	Tags []string `json:"tags"`
}

func (tagsConfig) Kind() Kind { return "TAGS" }

type anyConfig struct {
	V any
}

func (anyConfig) Kind() Kind { return "ANY" }

func TestConfigEqual(t *testing.T) {
	assert.True(t, ConfigEqual(nil, nil))
	assert.False(t, ConfigEqual(nil, SplitConfig{}))
	assert.True(t, ConfigEqual(SplitConfig{Separator: ","}, SplitConfig{Separator: ","}))
	assert.False(t, ConfigEqual(SplitConfig{Separator: ","}, SplitConfig{Separator: ";"}))
	assert.False(t, ConfigEqual(UppercaseConfig{}, LowercaseConfig{}))

	assert.NotPanics(t, func() {
		assert.True(t, ConfigEqual(tagsConfig{Tags: []string{"a"}}, tagsConfig{Tags: []string{"a"}}))
		assert.False(t, ConfigEqual(tagsConfig{Tags: []string{"a"}}, tagsConfig{Tags: []string{"b"}}))
		// comparable type, uncomparable dynamic value
		assert.True(t, ConfigEqual(anyConfig{V: []int{1}}, anyConfig{V: []int{1}}))
		assert.False(t, ConfigEqual(anyConfig{V: []int{1}}, anyConfig{V: 1}))
	})
}
