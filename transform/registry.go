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
	"encoding/json"
	"fmt"
	"sync"
)

// Func is a transform. It must be pure: same input and config, same output.
type Func func(input Value, cfg Config) (Value, error)

// Spec describes one registered kind.
type Spec struct {
	Kind        Kind
	Label       string
	Description string
	// Async kinds are only placeholders during evaluation; their real output
	// is produced out of band by a resolver.
	Async   bool
	Default Config

	fn     Func
	decode func(raw []byte) (Config, error)
}

// Define builds a Spec whose function receives its own config type.
// A config of any other type is replaced by def before fn is called.
func Define[C Config](kind Kind, label, desc string, def C, fn func(input Value, cfg C) (Value, error)) Spec {
	return Spec{
		Kind:        kind,
		Label:       label,
		Description: desc,
		Default:     def,
		fn: func(input Value, cfg Config) (Value, error) {
			c, ok := cfg.(C)
			if !ok {
				c = def
			}
			return fn(input, c)
		},
		decode: func(raw []byte) (Config, error) {
			c := def
			if len(raw) > 0 && string(raw) != "null" {
				if err := json.Unmarshal(raw, &c); err != nil {
					return nil, fmt.Errorf("decode %s config: %w", kind, err)
				}
			}
			return c, nil
		},
	}
}

// Registry maps kinds to transforms. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[Kind]Spec
	order []Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Kind]Spec)}
}

// NewDefaultRegistry returns a registry holding every built-in kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtins() {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Default is the registry used when none is supplied.
var Default = NewDefaultRegistry()

// Register adds a kind. Registering a kind twice is an error.
func (r *Registry) Register(s Spec) error {
	if s.Kind == "" {
		return fmt.Errorf("register: empty kind")
	}
	if s.fn == nil {
		return fmt.Errorf("register %s: spec must be built with Define", s.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[s.Kind]; ok {
		return fmt.Errorf("register %s: kind already registered", s.Kind)
	}
	r.specs[s.Kind] = s
	r.order = append(r.order, s.Kind)
	return nil
}

// Lookup returns the spec of kind.
func (r *Registry) Lookup(kind Kind) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[kind]
	return s, ok
}

// Kinds lists registered specs in registration order.
func (r *Registry) Kinds() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.specs[k])
	}
	return out
}

// IsAsync reports whether kind is resolved out of band.
func (r *Registry) IsAsync(kind Kind) bool {
	s, ok := r.Lookup(kind)
	return ok && s.Async
}

// DefaultConfig returns the initial config of a new block of kind.
func (r *Registry) DefaultConfig(kind Kind) Config {
	if s, ok := r.Lookup(kind); ok {
		return s.Default
	}
	return RawConfig{For: kind}
}

// DecodeConfig parses a persisted config. Unknown kinds keep the raw JSON.
func (r *Registry) DecodeConfig(kind Kind, raw []byte) (Config, error) {
	s, ok := r.Lookup(kind)
	if !ok {
		rc := RawConfig{For: kind}
		if len(raw) > 0 && string(raw) != "null" {
			if !json.Valid(raw) {
				return nil, fmt.Errorf("decode %s config: invalid JSON", kind)
			}
			rc.Raw = string(raw)
		}
		return rc, nil
	}
	return s.decode(raw)
}

// Evaluate applies kind to input. It never panics: failures, including
// panics inside the transform, are returned as a failed Result.
// Unknown kinds pass the input through unchanged.
func (r *Registry) Evaluate(kind Kind, input Value, cfg Config) (res Result) {
	s, ok := r.Lookup(kind)
	if !ok {
		return Ok(input)
	}
	if cfg == nil || cfg.Kind() != kind {
		cfg = s.Default
	}
	defer func() {
		if p := recover(); p != nil {
			res = Fail(fmt.Errorf("%v", p))
		}
	}()
	v, err := s.fn(input, cfg)
	if err != nil {
		return Fail(err)
	}
	return Ok(v)
}

// DecodeConfig parses a persisted config with the Default registry.
func DecodeConfig(kind Kind, raw []byte) (Config, error) {
	return Default.DecodeConfig(kind, raw)
}
