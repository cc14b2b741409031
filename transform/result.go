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
)

// Result is the outcome of applying one transform.
// A failed transform has Data == nil, a non-empty Error and Type == TypeNull.
type Result struct {
	Data  Value
	Error string
	Type  ResultType
}

// Ok wraps a successful value.
func Ok(v Value) Result {
	return Result{Data: v, Type: TypeOf(v)}
}

// failedMessage stands in for errors that carry no message.
const failedMessage = "transform failed"

// Fail wraps a transform error. A nil error or one with an empty message
// still yields a failed Result.
func Fail(err error) Result {
	msg := failedMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result{Type: TypeNull, Error: msg}
}

// Placeholder is the output a block carries before it is evaluated.
func Placeholder() Result {
	return Result{Type: TypeNull}
}

// Failed reports whether the transform produced an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Equal compares data structurally plus error and type.
func (r Result) Equal(o Result) bool {
	return r.Error == o.Error && r.Type == o.Type && Equal(r.Data, o.Data)
}

// Text renders the data for display: strings as-is, other values as indented JSON.
func (r Result) Text() string {
	if r.Failed() {
		return "Error: " + r.Error
	}
	if IsUndefined(r.Data) {
		return "undefined"
	}
	s, _ := ToText(r.Data)
	return s
}

type resultJSON struct {
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ResultType   ResultType      `json:"resultType"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{ErrorMessage: r.Error, ResultType: r.Type}
	if s, ok := EncodeJSON(r.Data); ok {
		out.Data = json.RawMessage(s)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Error, r.Type, r.Data = in.ErrorMessage, in.ResultType, Undefined
	if len(in.Data) > 0 {
		v, err := DecodeJSON(string(in.Data))
		if err != nil {
			return err
		}
		r.Data = v
	}
	return nil
}
