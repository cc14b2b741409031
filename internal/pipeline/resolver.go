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
)

// ErrNoResolver is the failure recorded when an async block is resolved
// without a configured resolver.
var ErrNoResolver = errors.New("no resolver configured for async blocks")

// Resolver produces the output of an async block. It receives the upstream
// value as text and the block's prompt, and returns the transformed text.
// Implementations may block; ctx carries cancellation.
type Resolver interface {
	Resolve(ctx context.Context, input, prompt string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, input, prompt string) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, input, prompt string) (string, error) {
	return f(ctx, input, prompt)
}
