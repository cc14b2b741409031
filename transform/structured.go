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
	"regexp"
	"strconv"
	"strings"
)

func parseJSON(input Value, _ ParseJSONConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(text)
}

func stringify(input Value, _ StringifyConfig) (Value, error) {
	s, ok := EncodeJSON(input)
	if !ok {
		return "undefined", nil
	}
	return s, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// minify compacts JSON text. Text that is not JSON has its whitespace runs
// collapsed to one space instead.
func minify(input Value, _ MinifyConfig) (Value, error) {
	switch x := input.(type) {
	case undefined:
		return Undefined, nil
	case string:
		if v, err := DecodeJSON(x); err == nil {
			s, _ := EncodeJSON(v)
			return s, nil
		}
		return strings.TrimSpace(whitespaceRun.ReplaceAllString(x, " ")), nil
	}
	s, _ := EncodeJSON(input)
	return s, nil
}

var bracketIndex = regexp.MustCompile(`\[(\w+)\]`)

// splitPath turns "a.b[0].c" into ["a", "b", "0", "c"].
func splitPath(path string) []string {
	norm := bracketIndex.ReplaceAllString(path, ".$1")
	norm = strings.TrimPrefix(norm, ".")
	return strings.Split(norm, ".")
}

// selectField walks input along the configured path. Any step that cannot be
// followed yields Undefined; it is not an error.
func selectField(input Value, cfg SelectFieldConfig) (Value, error) {
	if !Truthy(input) {
		return Undefined, nil
	}
	cur := input
	for _, key := range splitPath(cfg.Path) {
		cur = member(cur, key)
		if IsUndefined(cur) {
			return Undefined, nil
		}
	}
	return cur, nil
}

func member(v Value, key string) Value {
	switch x := v.(type) {
	case *Object:
		if e, ok := x.Get(key); ok {
			return e
		}
	case map[string]any:
		if e, ok := x[key]; ok {
			return e
		}
	case []any:
		if key == "length" {
			return float64(len(x))
		}
		if i, ok := arrayIndex(key); ok && i < len(x) {
			return x[i]
		}
	case string:
		// indexes count code points, the same unit SPLIT uses
		runes := []rune(x)
		if key == "length" {
			return float64(len(runes))
		}
		if i, ok := arrayIndex(key); ok && i < len(runes) {
			return string(runes[i])
		}
	}
	return Undefined
}

// arrayIndex accepts canonical non-negative integers only: "01" is not an index.
func arrayIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}
