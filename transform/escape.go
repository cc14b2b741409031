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
	"errors"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var errURIMalformed = errors.New("URI malformed")

func escape(input Value, cfg EscapeConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == ModeURI {
		return escapeURIComponent(text)
	}
	return escapeHTML(text), nil
}

func unescape(input Value, cfg UnescapeConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	if cfg.Mode == ModeURI {
		return unescapeURIComponent(text)
	}
	return unescapeHTML(text)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\u00a0", "&nbsp;",
)

// escapeHTML escapes text the way a DOM serializes a text node; quotes are left alone.
func escapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// unescapeHTML parses text as an HTML fragment and keeps only its text content.
func unescapeHTML(text string) (string, error) {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return sb.String(), nil
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// escapeURIComponent percent-encodes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func escapeURIComponent(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", errURIMalformed
	}
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isURIUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte("0123456789ABCDEF"[c>>4])
		sb.WriteByte("0123456789ABCDEF"[c&0xf])
	}
	return sb.String(), nil
}

func unescapeURIComponent(text string) (string, error) {
	s, err := url.PathUnescape(text)
	if err != nil || !utf8.ValidString(s) {
		return "", errURIMalformed
	}
	return s, nil
}
