// Package fieldpaths flattens decoded JSON documents into dotted field paths.
//
// Object keys are joined with "." and array elements are addressed as
// key[i], so {"a":{"b":[1,{"c":2}]}} flattens to a.b[0] and a.b[1].c.
// Empty objects and arrays contribute no paths.
package fieldpaths

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Flatten returns every leaf of data keyed by its path. data is expected to
// be the output of encoding/json decoding into any; scalars at the top level
// have no path and yield an empty map.
func Flatten(data any) map[string]any {
	out := make(map[string]any)
	flatten(out, "", data)
	return out
}

func flatten(out map[string]any, prefix string, v any) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			descend(out, path, child)
		}
	case []any:
		for i, child := range node {
			descend(out, prefix+"["+strconv.Itoa(i)+"]", child)
		}
	}
}

func descend(out map[string]any, path string, v any) {
	switch v.(type) {
	case map[string]any, []any:
		flatten(out, path, v)
	default:
		out[path] = v
	}
}

// Paths returns the sorted field paths of data.
func Paths(data any) []string {
	flat := Flatten(data)
	paths := make([]string, 0, len(flat))
	for p := range flat {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Decode parses raw JSON for use with Flatten and Paths. Numbers are kept as
// json.Number so large IDs survive unchanged.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}
