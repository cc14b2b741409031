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

// Package tool exposes pipelines as LLM tools and consumes tools from MCP servers.
package tool

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/tool"
	"github.com/invopop/jsonschema"

	"github.com/cloudwego/textflow/internal/utils"
)

type Tool = tool.BaseTool

var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
	Anonymous:      true,
}

// GetJSONSchema reflects the input schema of a tool request type.
func GetJSONSchema(v any) json.RawMessage {
	s := reflector.Reflect(v)
	s.Version = ""
	bs, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return bs
}

func marshalOutput(ctx context.Context, output interface{}) (string, error) {
	return utils.MarshalJSONIndent(output)
}
