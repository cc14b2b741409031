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
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
	"github.com/cloudwego/textflow/internal/pipeline"
)

// KeyPrefix namespaces saved pipelines inside the KV.
const KeyPrefix = "pipelines/"

var ErrEmptyName = errors.New("saved pipeline needs a name")

// SavedPipeline is the persisted form of a named pipeline.
type SavedPipeline struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	SourceInput string                     `json:"sourceInput"`
	Blocks      []pipeline.BlockDefinition `json:"blocks"`
	// CreatedAt is milliseconds since the Unix epoch.
	CreatedAt int64 `json:"createdAt"`
}

// Created returns CreatedAt as a time.
func (s SavedPipeline) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// Library manages saved pipelines.
type Library struct {
	kv    KV
	now   func() time.Time
	newID func() string
}

type LibraryOption func(*Library)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LibraryOption {
	return func(l *Library) { l.now = now }
}

// WithIDGenerator overrides the id generator used for new records.
func WithIDGenerator(gen func() string) LibraryOption {
	return func(l *Library) { l.newID = gen }
}

func NewLibrary(kv KV, opts ...LibraryOption) *Library {
	l := &Library{kv: kv, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SaveRequest describes a save. An empty ID creates a new record; an existing
// ID is updated in place and keeps its creation time.
type SaveRequest struct {
	ID          string
	Name        string
	SourceInput string
	Blocks      []pipeline.BlockDefinition
}

func (l *Library) Save(ctx context.Context, req SaveRequest) (*SavedPipeline, error) {
	rec := SavedPipeline{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		SourceInput: req.SourceInput,
		Blocks:      pipeline.CloneDefinitions(req.Blocks),
		CreatedAt:   l.now().UnixMilli(),
	}
	if rec.Blocks == nil {
		rec.Blocks = []pipeline.BlockDefinition{}
	}
	if err := pipeline.CheckIDs(rec.Blocks); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = l.newID()
	} else if old, err := l.Get(ctx, rec.ID); err == nil {
		rec.CreatedAt = old.CreatedAt
		if rec.Name == "" {
			rec.Name = old.Name
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if rec.Name == "" {
		return nil, ErrEmptyName
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrapf(err, "encode saved pipeline %s", rec.ID)
	}
	if err := l.kv.Set(ctx, KeyPrefix+rec.ID, data); err != nil {
		return nil, err
	}
	log.Info("saved pipeline %q (%s, %d blocks)", rec.Name, rec.ID, len(rec.Blocks))
	return &rec, nil
}

// Get loads one record. A record that cannot be decoded is reported as an error
// but left in place; List is where corrupt records are cleaned up.
func (l *Library) Get(ctx context.Context, id string) (*SavedPipeline, error) {
	data, err := l.kv.Get(ctx, KeyPrefix+id)
	if err != nil {
		return nil, err
	}
	rec, err := decodeSaved(id, data)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Library) Delete(ctx context.Context, id string) error {
	if err := l.kv.Delete(ctx, KeyPrefix+id); err != nil {
		return err
	}
	log.Info("deleted saved pipeline %s", id)
	return nil
}

// List returns every saved pipeline, newest first. Records that fail to
// decode are logged and removed instead of failing the listing.
func (l *Library) List(ctx context.Context) ([]SavedPipeline, error) {
	keys, err := l.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]SavedPipeline, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, KeyPrefix)
		data, err := l.kv.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rec, err := decodeSaved(id, data)
		if err != nil {
			log.Warn("discarding corrupt saved pipeline %s: %v", id, err)
			if err := l.kv.Delete(ctx, key); err != nil {
				log.Error("delete corrupt saved pipeline %s: %v", id, err)
			}
			continue
		}
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func decodeSaved(id string, data []byte) (*SavedPipeline, error) {
	var rec SavedPipeline
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "decode saved pipeline %s", id)
	}
	if rec.ID != id {
		return nil, errors.Errorf("saved pipeline %s: record id %q does not match its key", id, rec.ID)
	}
	if err := pipeline.CheckIDs(rec.Blocks); err != nil {
		return nil, errors.Wrapf(err, "saved pipeline %s", id)
	}
	return &rec, nil
}
