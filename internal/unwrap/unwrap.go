// Package unwrap is the Response Unwrapper & Path Extractor (C2): it turns
// an MCP tool response envelope into plain data, applies a small JSONPath
// subset to project fields out of it, and renames projected fields to a
// published schema. Grounded on the teacher's features/mcp/runtime
// normalizeToolResult (the same envelope-unwrap concern), generalized per
// spec.md §4.2 to the double-encoded-JSON and multi-item cases the
// teacher's single-item version does not handle — this module unifies on
// the double-aware variant per the open question in spec.md §9.
package unwrap

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mcpilot/core/internal/mcpclient"
)

// Unwrap implements the unwrap contract over an MCP content envelope:
//
// For each content item: if type="text" with JSON-parseable text, parse it;
// else keep the text string; else if a data field exists, use it. Return a
// single item if the list has length 1, else the list. If the unwrapped
// value is still a JSON string, parse once more (double-encoded payloads
// exist in the wild).
func Unwrap(content []mcpclient.ContentItem) any {
	items := make([]any, 0, len(content))
	for _, item := range content {
		items = append(items, unwrapItem(item))
	}
	var result any
	if len(items) == 1 {
		result = items[0]
	} else {
		result = items
	}
	return parseAgainIfJSONString(result)
}

func unwrapItem(item mcpclient.ContentItem) any {
	if item.Type == "text" && item.Text != nil {
		var parsed any
		if json.Unmarshal([]byte(*item.Text), &parsed) == nil {
			return parsed
		}
		return *item.Text
	}
	if len(item.Data) > 0 {
		var parsed any
		if json.Unmarshal(item.Data, &parsed) == nil {
			return parsed
		}
	}
	if item.Text != nil {
		return *item.Text
	}
	return nil
}

// parseAgainIfJSONString re-parses a string value that is itself valid JSON,
// handling MCP servers that double-encode their payloads. A non-string
// value, or a string that isn't valid JSON, passes through unchanged.
func parseAgainIfJSONString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var parsed any
	if json.Unmarshal([]byte(s), &parsed) != nil {
		return v
	}
	return parsed
}

// UnwrapValue applies the same contract to a value that is not necessarily
// an MCP content envelope: a non-envelope input is returned unchanged, per
// spec.md §4.2. This is the entry point used by code that already holds a
// raw json.RawMessage result (rather than the structured ContentItem list)
// and wants "unwrap if this happens to be an envelope, else pass through".
func UnwrapValue(raw json.RawMessage) any {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if rawContent, ok := asMap["content"]; ok {
			var items []mcpclient.ContentItem
			if json.Unmarshal(rawContent, &items) == nil {
				return Unwrap(items)
			}
		}
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	return parseAgainIfJSONString(generic)
}

// cleanPathPrefixes strips a well-known learning-time artifact from path: a
// leading "result[*].", "result.", or a bare "result" (meaning "return
// unwrapped as-is"). Stripping is idempotent — applying it twice yields the
// same result as applying it once.
func cleanPathPrefixes(path string) string {
	for {
		prev := path
		path = strings.TrimPrefix(path, "$.")
		switch {
		case strings.HasPrefix(path, "result[*]."):
			path = strings.TrimPrefix(path, "result[*].")
		case strings.HasPrefix(path, "result."):
			path = strings.TrimPrefix(path, "result.")
		case path == "result":
			path = ""
		}
		if path == prev {
			return path
		}
	}
}

// ExtractPath applies a JSONPath subset to value: an optional leading "$.",
// dotted segments, and "[*]" wildcards. See spec.md §4.2 for the evaluation
// algorithm; the three steps below correspond directly to its numbered
// list.
func ExtractPath(value any, path string) (any, bool) {
	path = cleanPathPrefixes(path)
	if path == "" {
		return value, true
	}
	if !strings.Contains(path, "[*]") {
		return extractSimplePath(value, path)
	}
	result, ok := extractWildcardPath(value, path)
	if ok {
		return result, true
	}
	// Step 3: if the top-level path misses on an array input, re-apply the
	// path to each element and concatenate defined results.
	if arr, isArr := value.([]any); isArr {
		var out []any
		for _, elem := range arr {
			if v, ok := ExtractPath(elem, path); ok {
				out = append(out, v)
			}
		}
		if out != nil {
			return out, true
		}
	}
	return nil, false
}

// extractSimplePath walks dotted segments (no wildcards). Segments may carry
// a numeric array index like "items[0]".
func extractSimplePath(value any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	cur := value
	for _, seg := range segments {
		name, idx, hasIdx := splitIndexSuffix(seg)
		if name != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				if arr, isArr := cur.([]any); isArr {
					if v, ok := extractFromEach(arr, name, idx, hasIdx); ok {
						cur = v
						continue
					}
				}
				return nil, false
			}
			v, ok := m[name]
			if !ok {
				return nil, false
			}
			cur = v
		}
		if hasIdx {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		}
	}
	return cur, true
}

func extractFromEach(arr []any, name string, idx int, hasIdx bool) (any, bool) {
	out := make([]any, 0, len(arr))
	for _, elem := range arr {
		m, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		v, ok := m[name]
		if !ok {
			continue
		}
		if hasIdx {
			inner, ok := v.([]any)
			if !ok || idx < 0 || idx >= len(inner) {
				continue
			}
			v = inner[idx]
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// splitIndexSuffix splits a path segment like "items[2]" into ("items", 2,
// true), or "[2]" into ("", 2, true), or "items" into ("items", 0, false).
func splitIndexSuffix(seg string) (name string, idx int, hasIdx bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false
	}
	close := strings.IndexByte(seg, ']')
	if close < open {
		return seg, 0, false
	}
	name = seg[:open]
	n, err := strconv.Atoi(seg[open+1 : close])
	if err != nil {
		return seg, 0, false
	}
	return name, n, true
}

// extractWildcardPath splits path on "[*]" and, at each wildcard boundary,
// extracts the next segment from every element of the current array and
// flattens one level.
func extractWildcardPath(value any, path string) (any, bool) {
	parts := strings.Split(path, "[*]")
	cur := value
	for i, part := range parts {
		part = strings.TrimPrefix(part, ".")
		if part != "" {
			v, ok := extractSimplePath(cur, part)
			if !ok {
				return nil, false
			}
			cur = v
		}
		if i == len(parts)-1 {
			break
		}
		arr, ok := cur.([]any)
		if !ok {
			return nil, false
		}
		cur = arr
	}
	return flattenOneLevel(cur), true
}

// flattenOneLevel flattens a []any whose elements are themselves []any (or
// single values produced by a wildcard boundary that yielded one result per
// parent) by one level, concatenating child arrays. Scalar elements pass
// through unchanged.
func flattenOneLevel(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	flat := make([]any, 0, len(arr))
	any2 := false
	for _, elem := range arr {
		if child, ok := elem.([]any); ok {
			any2 = true
			flat = append(flat, child...)
		} else {
			flat = append(flat, elem)
		}
	}
	if !any2 {
		return arr
	}
	return flat
}
