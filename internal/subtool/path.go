package subtool

import (
	"strconv"
	"strings"
)

// pathToken is one step of a parsed map_to_parent_arg path: either a named
// object key or a numeric array index.
type pathToken struct {
	key     string
	index   int
	isIndex bool
}

// parsePath tokenizes a dotted + `[i]` path like "date_ranges[0].start_date"
// into an ordered list of pathToken, per spec.md §4.3 step 2: numeric
// segments are array indices, named segments are object keys.
func parsePath(path string) []pathToken {
	var tokens []pathToken
	var key strings.Builder
	flushKey := func() {
		if key.Len() > 0 {
			tokens = append(tokens, pathToken{key: key.String()})
			key.Reset()
		}
	}
	i := 0
	for i < len(path) {
		c := path[i]
		switch c {
		case '.':
			flushKey()
			i++
		case '[':
			flushKey()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				// Malformed; treat remainder as a literal key.
				key.WriteString(path[i:])
				i = len(path)
				break
			}
			idxStr := path[i+1 : i+end]
			if n, err := strconv.Atoi(idxStr); err == nil {
				tokens = append(tokens, pathToken{index: n, isIndex: true})
			} else {
				tokens = append(tokens, pathToken{key: idxStr})
			}
			i += end + 1
		default:
			key.WriteByte(c)
			i++
		}
	}
	flushKey()
	return tokens
}

// setInContainer assigns value at the location described by tokens within
// container, materializing intermediate arrays/objects as needed and
// returning the (possibly newly allocated) container for the caller to
// reassign into its own parent. Arrays are grown with nil placeholders;
// objects with empty maps — per spec.md §4.3: "intermediate missing
// segments are materialized as either [] or {} depending on whether the
// next segment is numeric".
func setInContainer(container any, tokens []pathToken, value any) any {
	if len(tokens) == 0 {
		return value
	}
	token := tokens[0]
	rest := tokens[1:]

	if token.isIndex {
		arr, ok := container.([]any)
		if !ok {
			arr = nil
		}
		for len(arr) <= token.index {
			arr = append(arr, nil)
		}
		arr[token.index] = setInContainer(arr[token.index], rest, value)
		return arr
	}

	m, ok := container.(map[string]any)
	if !ok || m == nil {
		m = make(map[string]any)
	}
	m[token.key] = setInContainer(m[token.key], rest, value)
	return m
}

// SetNested assigns value into root at the dotted+`[i]` path, returning the
// (possibly grown) root map. root is treated as the top-level object, so
// path must begin with a named key.
func SetNested(root map[string]any, path string, value any) map[string]any {
	if root == nil {
		root = make(map[string]any)
	}
	tokens := parsePath(path)
	result := setInContainer(root, tokens, value)
	m, ok := result.(map[string]any)
	if !ok {
		return root
	}
	return m
}
