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
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is any value that flows between blocks:
// nil (JSON null), Undefined, string, a number, bool, []any or *Object.
type Value = any

// Object is a JSON object that remembers the insertion order of its keys.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

type undefined struct{}

func (undefined) String() string { return "undefined" }

// MarshalJSON renders Undefined as null when it ends up nested inside
// a document encoded by encoding/json.
func (undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Undefined marks the absence of a value. It is distinct from nil, which is JSON null.
var Undefined Value = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v Value) bool {
	_, ok := v.(undefined)
	return ok
}

// ResultType is the semantic type of a block output.
type ResultType string

const (
	TypeString  ResultType = "string"
	TypeObject  ResultType = "object"
	TypeArray   ResultType = "array"
	TypeNumber  ResultType = "number"
	TypeBoolean ResultType = "boolean"
	TypeNull    ResultType = "null"
)

// TypeOf classifies v. Undefined and nil are both reported as TypeNull.
func TypeOf(v Value) ResultType {
	switch v.(type) {
	case nil, undefined:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case []any:
		return TypeArray
	case *Object, map[string]any:
		return TypeObject
	}
	if _, ok := toFloat(v); ok {
		return TypeNumber
	}
	return TypeObject
}

// Truthy follows JavaScript truthiness, used where an empty input means "nothing to do".
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, undefined:
		return false
	case string:
		return x != ""
	case bool:
		return x
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && f == f
	}
	return true
}

// Equal reports deep structural equality. Object keys are compared in order,
// so two objects that serialize differently are never equal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case undefined:
		return IsUndefined(b)
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x == nil || y == nil || x.Len() != y.Len() {
			return false
		}
		for px, py := x.Oldest(), y.Oldest(); px != nil; px, py = px.Next(), py.Next() {
			if px.Key != py.Key || !Equal(px.Value, py.Value) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	fa, ok := toFloat(a)
	if !ok {
		return false
	}
	fb, ok := toFloat(b)
	return ok && fa == fb
}

// Clone deep-copies arrays and objects. Scalars are returned as-is.
func Clone(v Value) Value {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = Clone(x[i])
		}
		return out
	case *Object:
		if x == nil {
			return x
		}
		out := NewObject()
		for p := x.Oldest(); p != nil; p = p.Next() {
			out.Set(p.Key, Clone(p.Value))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Clone(e)
		}
		return out
	}
	return v
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
