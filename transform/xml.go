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
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

var errInvalidXML = errors.New("Invalid XML structure provided for parsing.")

type xmlNodeType int

const (
	xmlElement xmlNodeType = iota
	xmlText
	xmlComment
)

type xmlNode struct {
	typ      xmlNodeType
	name     string
	attrs    []xml.Attr
	text     string
	children []*xmlNode
}

func formatXML(input Value, cfg ParseXMLConfig) (Value, error) {
	text, err := ToText(input)
	if err != nil {
		return nil, err
	}
	doc, err := parseXMLDocument(text)
	if err != nil {
		return nil, errInvalidXML
	}
	indent := cfg.IndentSize
	if indent <= 0 {
		indent = 4
	}
	var sb strings.Builder
	for _, n := range doc {
		writeXMLNode(&sb, n, 0, indent)
	}
	return strings.TrimSpace(sb.String()), nil
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// parseXMLDocument builds the top-level nodes of a document: comments and
// exactly one root element. Start and end tags must match.
func parseXMLDocument(text string) ([]*xmlNode, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.Strict = true

	var (
		top   []*xmlNode
		stack []*xmlNode
		roots int
	)
	appendNode := func(n *xmlNode) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
	}

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if roots > 0 {
					return nil, errors.New("multiple root elements")
				}
				roots++
			}
			n := &xmlNode{typ: xmlElement, name: qualifiedName(t.Name), attrs: append([]xml.Attr(nil), t.Attr...)}
			appendNode(n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1].name != qualifiedName(t.Name) {
				return nil, errors.New("mismatched end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, errors.New("text outside root element")
				}
				continue
			}
			parent := stack[len(stack)-1]
			// adjacent character data (text and CDATA) forms a single text node
			if k := len(parent.children); k > 0 && parent.children[k-1].typ == xmlText {
				parent.children[k-1].text += string(t)
				continue
			}
			appendNode(&xmlNode{typ: xmlText, text: string(t)})
		case xml.Comment:
			appendNode(&xmlNode{typ: xmlComment, text: string(t)})
		}
	}
	if len(stack) > 0 {
		return nil, errors.New("unclosed element")
	}
	if roots == 0 {
		return nil, errors.New("no root element")
	}
	return top, nil
}

var (
	xmlTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	xmlAttrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeXMLText(s string) string {
	return xmlTextEscaper.Replace(s)
}

func writeXMLNode(sb *strings.Builder, n *xmlNode, level, indentSize int) {
	indent := strings.Repeat(" ", level*indentSize)
	switch n.typ {
	case xmlText:
		if t := strings.TrimSpace(n.text); t != "" {
			sb.WriteString(indent + escapeXMLText(t) + "\n")
		}
		return
	case xmlComment:
		sb.WriteString(indent + "<!--" + n.text + "-->\n")
		return
	}

	sb.WriteString(indent + "<" + n.name)
	var namespaces, others []xml.Attr
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			namespaces = append(namespaces, a)
		} else {
			others = append(others, a)
		}
	}
	writeAttr := func(prefix string, a xml.Attr) {
		sb.WriteString(prefix + qualifiedName(a.Name) + `="` + xmlAttrEscaper.Replace(a.Value) + `"`)
	}

	// more than one namespace declaration puts each on its own line
	multiline := len(namespaces) > 1
	if multiline {
		for _, a := range others {
			writeAttr(" ", a)
		}
		nsIndent := "\n" + strings.Repeat(" ", (level+1)*indentSize)
		for _, a := range namespaces {
			writeAttr(nsIndent, a)
		}
	} else {
		for _, a := range n.attrs {
			writeAttr(" ", a)
		}
	}

	if len(n.children) == 0 {
		if multiline {
			sb.WriteString("\n" + indent + "/>\n")
		} else {
			sb.WriteString("/>\n")
		}
		return
	}
	if multiline {
		sb.WriteString("\n" + indent + ">")
	} else {
		sb.WriteString(">")
	}

	textOnly := true
	var content strings.Builder
	for _, c := range n.children {
		if c.typ != xmlText {
			textOnly = false
			break
		}
		content.WriteString(c.text)
	}
	if t := strings.TrimSpace(content.String()); textOnly && t != "" && !multiline {
		sb.WriteString(escapeXMLText(t) + "</" + n.name + ">\n")
		return
	}
	sb.WriteString("\n")
	for _, c := range n.children {
		writeXMLNode(sb, c, level+1, indentSize)
	}
	sb.WriteString(indent + "</" + n.name + ">\n")
}
