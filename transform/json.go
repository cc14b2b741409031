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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrUndefinedInput is returned when a transform needs text but received Undefined.
var ErrUndefinedInput = errors.New("input is undefined")

// EncodeJSON serializes v as compact JSON. Keys keep insertion order, HTML
// characters are not escaped and numbers are formatted the way a browser does.
// It returns false for Undefined, which has no JSON form at the top level.
func EncodeJSON(v Value) (string, bool) {
	if IsUndefined(v) {
		return "", false
	}
	var buf bytes.Buffer
	encodeValue(&buf, v)
	return buf.String(), true
}

// EncodeJSONIndent is EncodeJSON with each level indented by indent.
func EncodeJSONIndent(v Value, indent string) (string, bool) {
	s, ok := EncodeJSON(v)
	if !ok {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", indent); err != nil {
		return s, true
	}
	return buf.String(), true
}

// ToText coerces a value to text: strings pass through, anything else is
// rendered as JSON indented by two spaces.
func ToText(v Value) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case undefined:
		return "", ErrUndefinedInput
	}
	s, _ := EncodeJSONIndent(v, "  ")
	return s, nil
}

// DecodeJSON parses text into a Value. Objects become *Object with their keys
// in document order; all numbers become float64.
func DecodeJSON(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, errors.New("unexpected end of JSON input")
	}
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			// out of float64 range, same as a browser would produce
			if strings.HasPrefix(t.String(), "-") {
				return math.Inf(-1), nil
			}
			return math.Inf(1), nil
		}
		return f, nil
	default:
		return t, nil
	}
}

func encodeValue(buf *bytes.Buffer, v Value) {
	switch x := v.(type) {
	case nil, undefined:
		buf.WriteString("null")
	case string:
		encodeString(buf, x)
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeValue(buf, e)
		}
		buf.WriteByte(']')
	case *Object:
		buf.WriteByte('{')
		if x != nil {
			first := true
			for p := x.Oldest(); p != nil; p = p.Next() {
				if IsUndefined(p.Value) {
					continue
				}
				if !first {
					buf.WriteByte(',')
				}
				first = false
				encodeString(buf, p.Key)
				buf.WriteByte(':')
				encodeValue(buf, p.Value)
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		first := true
		for _, k := range keys {
			if IsUndefined(x[k]) {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			encodeString(buf, k)
			buf.WriteByte(':')
			encodeValue(buf, x[k])
		}
		buf.WriteByte('}')
	default:
		if f, ok := toFloat(v); ok {
			buf.WriteString(formatNumber(f))
			return
		}
		// foreign types fall back to encoding/json
		b, err := json.Marshal(v)
		if err != nil {
			buf.WriteString("null")
			return
		}
		buf.Write(b)
	}
}

// formatNumber renders f like Number.prototype.toString: integers without a
// fraction, exponent notation outside [1e-6, 1e21), non-finite values as null.
func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

const hexDigits = "0123456789abcdef"

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				buf.WriteString(`\"`)
			case '\\':
				buf.WriteString(`\\`)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			case '\t':
				buf.WriteString(`\t`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			default:
				if c < 0x20 {
					buf.WriteString(`\u00`)
					buf.WriteByte(hexDigits[c>>4])
					buf.WriteByte(hexDigits[c&0xf])
				} else {
					buf.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(`\ufffd`)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
