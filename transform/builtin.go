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

func builtins() []Spec {
	ai := Define(KindAIProcess, "AI Transform", "Rewrite the text with a language model following a prompt",
		AIConfig{}, func(input Value, _ AIConfig) (Value, error) { return input, nil })
	ai.Async = true

	return []Spec{
		Define(KindEscape, "Escape", "Escape text for HTML or URI components",
			EscapeConfig{Mode: ModeHTML}, escape),
		Define(KindUnescape, "Unescape", "Decode HTML entities or percent-encoding",
			UnescapeConfig{Mode: ModeHTML}, unescape),
		Define(KindParseJSON, "Parse JSON", "Parse text into a structured value",
			ParseJSONConfig{}, parseJSON),
		Define(KindParseXML, "Format XML", "Parse and pretty-print an XML document",
			ParseXMLConfig{IndentSize: 4}, formatXML),
		Define(KindStringify, "Stringify JSON", "Serialize a value as compact JSON text",
			StringifyConfig{}, stringify),
		Define(KindMinify, "Minify", "Compact JSON or collapse whitespace",
			MinifyConfig{}, minify),
		Define(KindSelectField, "Select Field", "Pick a nested field by path, e.g. user.tags[0]",
			SelectFieldConfig{}, selectField),
		Define(KindSplit, "Split", "Split text into an array by a separator",
			SplitConfig{}, split),
		Define(KindCase, "Change Case", "Convert text to upper or lower case",
			CaseConfig{Mode: CaseUpper}, changeCase),
		Define(KindUppercase, "Uppercase", "Convert text to upper case",
			UppercaseConfig{}, func(input Value, _ UppercaseConfig) (Value, error) {
				return changeCase(input, CaseConfig{Mode: CaseUpper})
			}),
		Define(KindLowercase, "Lowercase", "Convert text to lower case",
			LowercaseConfig{}, func(input Value, _ LowercaseConfig) (Value, error) {
				return changeCase(input, CaseConfig{Mode: CaseLower})
			}),
		ai,
	}
}
