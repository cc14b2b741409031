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
	"strings"
)

// split cuts text by the separator. An empty separator yields one element
// per code point, matching how SELECT_FIELD indexes strings.
func split(input Value, cfg SplitConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	var parts []string
	if cfg.Separator == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, cfg.Separator)
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func changeCase(input Value, cfg CaseConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == CaseLower {
		return strings.ToLower(text), nil
	}
	return strings.ToUpper(text), nil
}
