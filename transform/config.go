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
	"reflect"
)

// Kind identifies a transform. The values are the identifiers persisted in
// saved pipelines and export files, so they must never change.
type Kind string

const (
	KindEscape      Kind = "ESCAPE"
	KindUnescape    Kind = "UNESCAPE"
	KindParseJSON   Kind = "PARSE_JSON"
	KindParseXML    Kind = "PARSE_XML"
	KindStringify   Kind = "JSON_STRINGIFY"
	KindMinify      Kind = "MINIFY"
	KindSelectField Kind = "SELECT_FIELD"
	KindSplit       Kind = "SPLIT"
	KindCase        Kind = "TRANSFORM_CASE"
	KindUppercase   Kind = "TRANSFORM_UPPERCASE"
	KindLowercase   Kind = "TRANSFORM_LOWERCASE"
	KindAIProcess   Kind = "AI_PROCESS"
)

// Config is the per-kind configuration of a block. Compare configs with
// ConfigEqual: custom kinds may carry slices or maps.
type Config interface {
	Kind() Kind
}

// ConfigEqual reports whether a and b hold the same dynamic type and value.
// It never panics on configs whose type is not comparable.
func ConfigEqual(a, b Config) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) {
		return false
	}
	if t.Comparable() && comparableValue(reflect.ValueOf(a)) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// comparableValue catches comparable types that still hold an uncomparable
// dynamic value in an interface field.
func comparableValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		return v.Elem().Type().Comparable() && comparableValue(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !comparableValue(v.Field(i)) {
				return false
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !comparableValue(v.Index(i)) {
				return false
			}
		}
	}
	return true
}

// EscapeMode selects the escaping scheme of ESCAPE and UNESCAPE.
type EscapeMode string

const (
	ModeHTML EscapeMode = "html"
	ModeURI  EscapeMode = "uri"
)

// CaseMode selects the direction of TRANSFORM_CASE.
type CaseMode string

const (
	CaseUpper CaseMode = "upper"
	CaseLower CaseMode = "lower"
)

type EscapeConfig struct {
	Mode EscapeMode `json:"mode"`
}

func (EscapeConfig) Kind() Kind { return KindEscape }

type UnescapeConfig struct {
	Mode EscapeMode `json:"mode"`
}

func (UnescapeConfig) Kind() Kind { return KindUnescape }

type ParseJSONConfig struct{}

func (ParseJSONConfig) Kind() Kind { return KindParseJSON }

type ParseXMLConfig struct {
	// IndentSize is the number of spaces per nesting level. Zero means 4.
	IndentSize int `json:"indentSize,omitempty"`
}

func (ParseXMLConfig) Kind() Kind { return KindParseXML }

type StringifyConfig struct{}

func (StringifyConfig) Kind() Kind { return KindStringify }

type MinifyConfig struct{}

func (MinifyConfig) Kind() Kind { return KindMinify }

type SelectFieldConfig struct {
	Path string `json:"path"`
}

func (SelectFieldConfig) Kind() Kind { return KindSelectField }

type SplitConfig struct {
	Separator string `json:"separator"`
}

func (SplitConfig) Kind() Kind { return KindSplit }

type CaseConfig struct {
	Mode CaseMode `json:"mode"`
}

func (CaseConfig) Kind() Kind { return KindCase }

type UppercaseConfig struct{}

func (UppercaseConfig) Kind() Kind { return KindUppercase }

type LowercaseConfig struct{}

func (LowercaseConfig) Kind() Kind { return KindLowercase }

type AIConfig struct {
	Prompt string `json:"prompt"`
}

func (AIConfig) Kind() Kind { return KindAIProcess }

// RawConfig keeps the configuration of a kind this registry does not know,
// so it survives a load/save round trip untouched.
type RawConfig struct {
	For Kind
	Raw string
}

func (c RawConfig) Kind() Kind { return c.For }

func (c RawConfig) MarshalJSON() ([]byte, error) {
	if c.Raw == "" {
		return []byte("{}"), nil
	}
	return []byte(c.Raw), nil
}

// MarshalConfig encodes cfg as a JSON object; nil becomes {}.
func MarshalConfig(cfg Config) (json.RawMessage, error) {
	if cfg == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
