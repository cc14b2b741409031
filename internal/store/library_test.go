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

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/textflow/internal/pipeline"
	"github.com/cloudwego/textflow/transform"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func eachKV(t *testing.T, fn func(t *testing.T, kv KV)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryKV()) })
	t.Run("badger", func(t *testing.T) {
		kv, err := OpenBadger(InMemoryBadgerConfig())
		require.NoError(t, err)
		defer kv.Close()
		fn(t, kv)
	})
}

func blocks() []pipeline.BlockDefinition {
	return []pipeline.BlockDefinition{
		{ID: "b1", Kind: transform.KindSplit, Config: transform.SplitConfig{Separator: ","}},
		{ID: "b2", Kind: transform.KindSelectField, Config: transform.SelectFieldConfig{Path: "0"}},
	}
}

func TestLibraryLifecycle(t *testing.T) {
	eachKV(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
		lib := NewLibrary(kv, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

		first, err := lib.Save(ctx, SaveRequest{Name: "first", SourceInput: "a,b", Blocks: blocks()})
		require.NoError(t, err)
		assert.Equal(t, "id-1", first.ID)
		second, err := lib.Save(ctx, SaveRequest{Name: "second", SourceInput: "x"})
		require.NoError(t, err)

		list, err := lib.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, []string{second.ID, first.ID}, []string{list[0].ID, list[1].ID})
		assert.Equal(t, blocks(), list[1].Blocks)

		updated, err := lib.Save(ctx, SaveRequest{ID: first.ID, SourceInput: "changed", Blocks: blocks()[:1]})
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, updated.CreatedAt)
		assert.Equal(t, "first", updated.Name)

		got, err := lib.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", got.SourceInput)
		assert.Len(t, got.Blocks, 1)

		require.NoError(t, lib.Delete(ctx, first.ID))
		_, err = lib.Get(ctx, first.ID)
		assert.True(t, errors.Is(err, ErrNotFound))

		list, err = lib.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestLibraryRequiresName(t *testing.T) {
	lib := NewLibrary(NewMemoryKV())
	_, err := lib.Save(context.Background(), SaveRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestLibraryDiscardsCorruptRecords(t *testing.T) {
	eachKV(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		lib := NewLibrary(kv)
		good, err := lib.Save(ctx, SaveRequest{Name: "ok", Blocks: blocks()})
		require.NoError(t, err)

		require.NoError(t, kv.Set(ctx, KeyPrefix+"broken", []byte("{not json")))
		require.NoError(t, kv.Set(ctx, KeyPrefix+"mismatch", []byte(`{"id":"other","name":"x","blocks":[]}`)))
		require.NoError(t, kv.Set(ctx, KeyPrefix+"dup", []byte(`{"id":"dup","name":"x","blocks":[`+
			`{"id":"b1","kind":"SPLIT","config":{}},{"id":"b1","kind":"MINIFY","config":{}}]}`)))

		list, err := lib.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, good.ID, list[0].ID)

		keys, err := kv.Keys(ctx, KeyPrefix)
		require.NoError(t, err)
		assert.Equal(t, []string{KeyPrefix + good.ID}, keys)
	})
}

func TestSavedRecordFormat(t *testing.T) {
	kv := NewMemoryKV()
	lib := NewLibrary(kv, WithClock(func() time.Time { return time.UnixMilli(1234) }), WithIDGenerator(func() string { return "p1" }))
	_, err := lib.Save(context.Background(), SaveRequest{Name: "n", SourceInput: "in", Blocks: blocks()[:1]})
	require.NoError(t, err)
	raw, err := kv.Get(context.Background(), KeyPrefix+"p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","name":"n","sourceInput":"in","blocks":[{"id":"b1","kind":"SPLIT","config":{"separator":","}}],"createdAt":1234}`, string(raw))
}

func TestLibraryRejectsDuplicateBlockIDs(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	lib := NewLibrary(kv)

	dup := append(blocks(), pipeline.BlockDefinition{ID: "b1", Kind: transform.KindMinify, Config: transform.MinifyConfig{}})
	_, err := lib.Save(ctx, SaveRequest{Name: "dup", Blocks: dup})
	assert.ErrorIs(t, err, pipeline.ErrDuplicateID)

	require.NoError(t, kv.Set(ctx, KeyPrefix+"dup", []byte(`{"id":"dup","name":"x","blocks":[`+
		`{"id":"b1","kind":"SPLIT","config":{}},{"id":"b1","kind":"MINIFY","config":{}}]}`)))
	_, err = lib.Get(ctx, "dup")
	assert.ErrorIs(t, err, pipeline.ErrDuplicateID)
}
