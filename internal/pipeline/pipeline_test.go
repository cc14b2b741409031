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

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/textflow/transform"
)

func def(id string, kind transform.Kind, cfg transform.Config) BlockDefinition {
	return BlockDefinition{ID: id, Kind: kind, Config: cfg}
}

func TestEvaluate_EmptyPipeline(t *testing.T) {
	e := NewEvaluator(nil)
	ev := e.Evaluate(context.Background(), "hello", nil, nil)
	if len(ev.Blocks) != 0 || len(ev.Changed) != 0 {
		t.Fatalf("expected no blocks and no changes, got %+v", ev)
	}
	if got := ev.Pipeline().FinalOutput(); got != "hello" {
		t.Errorf("final output = %v, want source input", got)
	}
}

func TestEvaluate_ChangeDetection(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("split", transform.KindSplit, transform.SplitConfig{Separator: ","}),
		def("pick", transform.KindSelectField, transform.SelectFieldConfig{Path: "0"}),
	}
	first := e.Evaluate(ctx, "a,b,c", defs, nil)
	if len(first.Changed) != 2 {
		t.Fatalf("first pass should report every block, got %v", first.Changed)
	}
	if first.Blocks[1].Output.Data != "a" {
		t.Fatalf("pick = %v, want a", first.Blocks[1].Output.Data)
	}

	defs[1].Config = transform.SelectFieldConfig{Path: "1"}
	second := e.Evaluate(ctx, "a,b,c", defs, first.Blocks)
	if len(second.Changed) != 1 || !second.Changed.Has("pick") {
		t.Fatalf("changed = %v, want only pick", second.Changed)
	}
	if second.Blocks[1].Output.Data != "b" {
		t.Errorf("pick = %v, want b", second.Blocks[1].Output.Data)
	}
	// the unchanged split output keeps the same underlying array
	a, b := first.Blocks[0].Output.Data.([]any), second.Blocks[0].Output.Data.([]any)
	if &a[0] != &b[0] {
		t.Errorf("unchanged output was replaced")
	}
}

func TestEvaluate_NoChanges(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator(nil)
	defs := []BlockDefinition{def("p", transform.KindParseJSON, transform.ParseJSONConfig{})}
	first := e.Evaluate(ctx, `{"a":1}`, defs, nil)
	second := e.Evaluate(ctx, `{"a":1}`, defs, first.Blocks)
	if len(second.Changed) != 0 {
		t.Errorf("re-evaluating identical state reported %v", second.Changed)
	}
}

func TestEvaluate_ErrorPropagatesByValue(t *testing.T) {
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("parse", transform.KindParseJSON, transform.ParseJSONConfig{}),
		def("pick", transform.KindSelectField, transform.SelectFieldConfig{Path: "x"}),
		def("upper", transform.KindUppercase, transform.UppercaseConfig{}),
	}
	ev := e.Evaluate(context.Background(), "not json", defs, nil)
	parse, pick, upper := ev.Blocks[0].Output, ev.Blocks[1].Output, ev.Blocks[2].Output
	if !parse.Failed() || parse.Data != nil || parse.Type != transform.TypeNull {
		t.Errorf("parse output = %+v, want failure", parse)
	}
	if pick.Failed() || !transform.IsUndefined(pick.Data) {
		t.Errorf("pick output = %+v, want undefined without error", pick)
	}
	if !upper.Failed() {
		t.Errorf("upper should fail on undefined input, got %+v", upper)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("a", transform.KindParseJSON, transform.ParseJSONConfig{}),
		def("b", transform.KindSelectField, transform.SelectFieldConfig{Path: "list[1]"}),
		def("c", transform.KindCase, transform.CaseConfig{Mode: transform.CaseUpper}),
	}
	in := `{"list":["x","y"]}`
	x := e.Evaluate(context.Background(), in, defs, nil)
	y := e.Evaluate(context.Background(), in, defs, nil)
	for i := range x.Blocks {
		if !x.Blocks[i].Output.Equal(y.Blocks[i].Output) {
			t.Errorf("block %d differs between runs", i)
		}
	}
	if x.Pipeline().FinalOutput() != "Y" {
		t.Errorf("final = %v", x.Pipeline().FinalOutput())
	}
}

func shout(calls *int) Resolver {
	return ResolverFunc(func(ctx context.Context, input, prompt string) (string, error) {
		*calls++
		return strings.ToUpper(input) + prompt, nil
	})
}

func TestResolve_DownstreamOnly(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("lower", transform.KindLowercase, transform.LowercaseConfig{}),
		def("ai", transform.KindAIProcess, transform.AIConfig{Prompt: "!"}),
		def("split", transform.KindSplit, transform.SplitConfig{Separator: " "}),
	}
	ev := e.Evaluate(ctx, "Hello World", defs, nil)
	if ev.Blocks[1].Output.Data != "hello world" {
		t.Fatalf("placeholder should pass upstream through, got %v", ev.Blocks[1].Output.Data)
	}

	var calls int
	res, err := e.Resolve(ctx, ev.Pipeline(), "ai", shout(&calls))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("resolver called %d times", calls)
	}
	if res.Changed.Has("lower") || !res.Changed.Has("ai") || !res.Changed.Has("split") {
		t.Errorf("changed = %v", res.Changed)
	}
	if got := res.Blocks[2].Output.Data.([]any); len(got) != 2 || got[1] != "WORLD!" {
		t.Errorf("split = %v", got)
	}

	// an unrelated re-evaluation keeps the resolved output
	again := e.Evaluate(ctx, "Hello World", Definitions(res.Blocks), res.Blocks)
	if len(again.Changed) != 0 || again.Blocks[1].Output.Data != "HELLO WORLD!" {
		t.Errorf("resolution lost: changed=%v ai=%v", again.Changed, again.Blocks[1].Output.Data)
	}

	// new upstream input drops it back to the placeholder
	moved := e.Evaluate(ctx, "Bye", Definitions(res.Blocks), res.Blocks)
	if moved.Blocks[1].Output.Data != "bye" || moved.Blocks[1].Resolution != nil {
		t.Errorf("stale resolution kept: %+v", moved.Blocks[1])
	}
}

func TestResolve_Failure(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("ai", transform.KindAIProcess, transform.AIConfig{Prompt: "x"}),
		def("upper", transform.KindUppercase, transform.UppercaseConfig{}),
	}
	ev := e.Evaluate(ctx, "in", defs, nil)
	failing := ResolverFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("quota exceeded")
	})
	res, err := e.Resolve(ctx, ev.Pipeline(), "ai", failing)
	if err != nil {
		t.Fatal(err)
	}
	if res.Blocks[0].Output.Error != "quota exceeded" || res.Blocks[0].Output.Data != nil {
		t.Errorf("ai output = %+v", res.Blocks[0].Output)
	}
	// downstream receives null, which text kinds render as "null"
	if res.Blocks[1].Output.Data != "NULL" {
		t.Errorf("downstream output = %+v", res.Blocks[1].Output)
	}

	res, err = e.Resolve(ctx, ev.Pipeline(), "ai", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Blocks[0].Output.Error != ErrNoResolver.Error() {
		t.Errorf("missing resolver output = %+v", res.Blocks[0].Output)
	}
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator(nil)
	defs := []BlockDefinition{
		def("ai", transform.KindAIProcess, transform.AIConfig{}),
		def("upper", transform.KindUppercase, transform.UppercaseConfig{}),
	}
	p := e.Evaluate(ctx, "in", defs, nil).Pipeline()

	if _, err := e.PrepareResolve(p, "missing"); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("missing block: %v", err)
	}
	if _, err := e.PrepareResolve(p, "upper"); !errors.Is(err, ErrNotAsync) {
		t.Errorf("sync block: %v", err)
	}

	req, err := e.PrepareResolve(p, "ai")
	if err != nil {
		t.Fatal(err)
	}
	edited := e.Evaluate(ctx, "changed", defs, p.Blocks).Pipeline()
	if _, err := e.ApplyResolve(ctx, edited, req, transform.Ok("x")); !errors.Is(err, ErrStaleResolution) {
		t.Errorf("changed upstream: %v", err)
	}
	removed := e.Evaluate(ctx, "in", defs[1:], p.Blocks).Pipeline()
	if _, err := e.ApplyResolve(ctx, removed, req, transform.Ok("x")); !errors.Is(err, ErrStaleResolution) {
		t.Errorf("removed block: %v", err)
	}
}

func TestRun_ResolvesAsyncBlocksInOrder(t *testing.T) {
	var seen []string
	r := ResolverFunc(func(ctx context.Context, input, prompt string) (string, error) {
		seen = append(seen, prompt+":"+input)
		return prompt + "(" + input + ")", nil
	})
	defs := []BlockDefinition{
		def("a", transform.KindAIProcess, transform.AIConfig{Prompt: "f"}),
		def("up", transform.KindUppercase, transform.UppercaseConfig{}),
		def("b", transform.KindAIProcess, transform.AIConfig{Prompt: "g"}),
	}
	ev, err := NewEvaluator(nil).Run(context.Background(), "x", defs, r)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(seen, " "); got != "f:x g:F(X)" {
		t.Fatalf("resolver calls = %q", got)
	}
	if got := ev.Pipeline().FinalOutput(); got != "g(F(X))" {
		t.Errorf("final output = %v", got)
	}
	if len(ev.Changed) != 3 {
		t.Errorf("changed = %v, want all blocks", ev.Changed)
	}

	ev, err = NewEvaluator(nil).Run(context.Background(), "x", defs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := ev.Pipeline().FinalOutput(); got != "X" {
		t.Errorf("unresolved final output = %v, want placeholder passthrough", got)
	}
}

func TestRun_RejectsAmbiguousIDs(t *testing.T) {
	r := ResolverFunc(func(ctx context.Context, input, prompt string) (string, error) {
		t.Fatal("resolver must not be called")
		return "", nil
	})
	dup := []BlockDefinition{
		def("b1", transform.KindSplit, transform.SplitConfig{}),
		def("b1", transform.KindAIProcess, transform.AIConfig{Prompt: "p"}),
	}
	if _, err := NewEvaluator(nil).Run(context.Background(), "ab", dup, r); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate ids: err = %v", err)
	}
	missing := []BlockDefinition{def("", transform.KindSplit, transform.SplitConfig{})}
	if _, err := NewEvaluator(nil).Run(context.Background(), "ab", missing, r); !errors.Is(err, ErrMissingID) {
		t.Errorf("missing id: err = %v", err)
	}
}

func TestCheckIDs(t *testing.T) {
	ok := []BlockDefinition{
		def("b1", transform.KindSplit, nil),
		def("b2", transform.KindMinify, nil),
	}
	if err := CheckIDs(ok); err != nil {
		t.Errorf("unique ids: %v", err)
	}
	if err := CheckIDs(nil); err != nil {
		t.Errorf("empty: %v", err)
	}
	if err := CheckIDs(append(ok, def("b2", transform.KindSplit, nil))); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate: %v", err)
	}
}
