/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prompt

import (
	"bytes"
	_ "embed"
	"os"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

type Prompt interface {
	String() string
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

//go:embed transform.md
var transformSource string

var transformTemplate = template.Must(template.New("transform").Parse(transformSource))

// TransformData fills the system prompt of an AI block.
type TransformData struct {
	Instruction string
	// MaxChars asks the model to keep replies short; zero means no limit.
	MaxChars int
}

// TemplatePrompt renders a text/template with Data on every String call.
type TemplatePrompt struct {
	tpl  *template.Template
	Data any
}

func (p TemplatePrompt) String() string {
	var buf bytes.Buffer
	if err := p.tpl.Execute(&buf, p.Data); err != nil {
		panic(err)
	}
	return buf.String()
}

// NewTemplatePrompt parses text as a template rendered against data.
func NewTemplatePrompt(text string, data any) (Prompt, error) {
	tpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse prompt template")
	}
	if err := tpl.Execute(&bytes.Buffer{}, data); err != nil {
		return nil, errors.Wrap(err, "render prompt template")
	}
	return TemplatePrompt{tpl: tpl, Data: data}, nil
}

// LoadTemplatePrompt reads a template file; used to override the built-in
// system prompt.
func LoadTemplatePrompt(path string) (*template.Template, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt %s", path)
	}
	tpl, err := template.New("transform").Parse(string(bs))
	if err != nil {
		return nil, errors.Wrapf(err, "parse prompt %s", path)
	}
	return tpl, nil
}

// Transform is the system prompt for one AI block. tpl may be nil for the
// built-in template.
func Transform(tpl *template.Template, instruction string, maxChars int) Prompt {
	if tpl == nil {
		tpl = transformTemplate
	}
	return TemplatePrompt{tpl: tpl, Data: TransformData{
		Instruction: strings.TrimSpace(instruction),
		MaxChars:    maxChars,
	}}
}
