package swagger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.yaml.in/yaml/v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// document is the API reference in both encodings with a content tag per
// encoding, built once at registration.
type document struct {
	yaml     []byte
	json     []byte
	yamlETag string
	jsonETag string
}

func loadDocument(src []byte) (*document, error) {
	var tree any
	if err := yaml.Unmarshal(src, &tree); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	js, err := json.Marshal(stringKeys(tree))
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &document{yaml: src, json: js, yamlETag: etag(src), jsonETag: etag(js)}, nil
}

func etag(b []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(b), 16) + `"`
}

// stringKeys rewrites YAML mappings with non-string keys (e.g. bare status
// codes) into JSON-encodable maps.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	}
	return v
}
