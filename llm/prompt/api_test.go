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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	p := Transform(nil, "  translate to French \n", 0).String()
	assert.Contains(t, p, "# Instruction\n\ntranslate to French\n")
	assert.NotContains(t, p, "characters")

	p = Transform(nil, "summarize", 200).String()
	assert.Contains(t, p, "Keep the reply under 200 characters.")
	// special characters are not HTML-escaped
	assert.Contains(t, Transform(nil, "a < b & c", 0).String(), "a < b & c")
}

func TestTemplatePrompt(t *testing.T) {
	p, err := NewTemplatePrompt("hi {{ .Name }}", map[string]string{"Name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", p.String())

	_, err = NewTemplatePrompt("{{ .Missing", nil)
	assert.Error(t, err)

	assert.Equal(t, "plain", NewTextPrompt("plain").String())
}

func TestLoadTemplatePrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.md")
	require.NoError(t, os.WriteFile(path, []byte("DO: {{ .Instruction }}"), 0o644))
	tpl, err := LoadTemplatePrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "DO: shout", Transform(tpl, "shout", 0).String())

	_, err = LoadTemplatePrompt(filepath.Join(t.TempDir(), "missing.md"))
	assert.True(t, strings.Contains(err.Error(), "missing.md"))
}
