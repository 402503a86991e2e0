// Package docstore implements §4.6 (document record store, external-id
// index) plus the §6.1 document format: canonical JSON flattening of
// nested objects into dotted paths, array order preservation, and primary
// key detection/auto-generation.
package docstore

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Flatten turns a decoded JSON object into dotted-path → value pairs, the
// canonical form §6.1 requires: nested objects flatten, arrays keep order
// and are stored as arrays of scalars at the path.
func Flatten(doc map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(doc, "", out)
	return out
}

func flattenInto(v any, prefix string, out map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			out[prefix] = val
			return
		}
		for k, child := range val {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			flattenInto(child, path, out)
		}
	default:
		out[prefix] = v
	}
}

// Unflatten is the inverse of Flatten, used when materializing a search
// hit or a get_documents response back into nested JSON.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setDotted(out, k, flat[k])
	}
	return out
}

func setDotted(root map[string]any, path string, value any) {
	parts := splitDotted(path)
	cur := root
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
}

func splitDotted(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// ResolvePrimaryKey implements the §6.1 detection rule: the configured
// field name if set, otherwise the only field whose name equals or ends
// with "id" (case-insensitive).
func ResolvePrimaryKey(configured string, flat map[string]any) (string, error) {
	if configured != "" {
		return configured, nil
	}
	var candidates []string
	for k := range flat {
		if k == "id" || hasIDSuffix(k) {
			candidates = append(candidates, k)
		}
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("docstore: no primary key candidate found")
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("docstore: ambiguous primary key, candidates: %v", candidates)
	}
}

func hasIDSuffix(field string) bool {
	if len(field) < 2 {
		return false
	}
	suf := field[len(field)-2:]
	return suf == "id" || suf == "Id" || suf == "ID"
}

// ExternalIDOf extracts the primary key's external id string from a
// flattened document, coercing numeric ids to strings the way the engine
// treats both as valid primary key value shapes.
func ExternalIDOf(pk string, flat map[string]any) (string, error) {
	v, ok := flat[pk]
	if !ok || v == nil {
		return "", fmt.Errorf("docstore: document is missing primary key %q", pk)
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("docstore: primary key %q is empty", pk)
		}
		return t, nil
	case float64:
		return fmt.Sprintf("%d", int64(t)), nil
	case int:
		return fmt.Sprintf("%d", t), nil
	default:
		return "", fmt.Errorf("docstore: primary key %q must be a string or integer", pk)
	}
}

// GenerateID returns a UUID-like string for documents missing an explicit
// primary key when auto-generation is enabled (§6.1).
func GenerateID() string {
	return uuid.NewString()
}
