// Package mcpclient is the MCP Client Manager (C1): it connects to the set of
// tool servers named in the mcp-config.json, enumerates and sanitizes their
// tools, and routes sanitized-name calls back to the owning server. Transport
// plumbing is adapted from the teacher's features/mcp/runtime callers
// (stdio framing, JSON-RPC-over-HTTP, SSE); the sanitization and routing
// rules themselves are new, grounded on spec.md §3/§4.1.
package mcpclient

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool describes one MCP tool as recorded by the Manager after sanitization.
type Tool struct {
	ServerName    string
	OriginalName  string
	SanitizedName string
	Description   string
	InputSchema   json.RawMessage
}

// maxSanitizedLen is the maximum length of a sanitized tool name, per
// spec.md §3: "truncate to 64 chars with a 6-hex-char hash suffix when
// needed".
const maxSanitizedLen = 64

// hashSuffixLen is the length of the hex hash suffix, including its
// separating underscore: "_abcdef" is 7 characters.
const hashSuffixLen = 7

// validChar reports whether r is allowed unescaped in a sanitized name:
// [A-Za-z0-9_.\-:].
func validChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '-' || r == ':':
		return true
	}
	return false
}

// sanitizeChars replaces every rune outside the allowed class with '_'.
func sanitizeChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if validChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Sanitize computes the sanitized tool name for (server, original) per
// spec.md §3: `<server>__<original>`, replace non-`[A-Za-z0-9_.\-:]` with
// `_`, ensure an alphabetic/underscore prefix, and truncate to 64 chars with
// a 6-hex-char hash suffix when needed so uniqueness is preserved.
//
// seen is the manager's in-progress registry of sanitized names; it is
// consulted only to break a collision introduced by truncation (the
// untruncated name is unique by construction as long as (server, original)
// pairs are themselves unique, but truncation can merge two long names onto
// the same 57-character prefix).
func Sanitize(server, original string, seen map[string]bool) string {
	combined := sanitizeChars(server + "__" + original)
	if combined == "" {
		combined = "_"
	}
	if c := combined[0]; !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_') {
		combined = "_" + combined
	}
	if len(combined) <= maxSanitizedLen {
		if seen == nil || !seen[combined] {
			return combined
		}
	}
	return truncateWithHash(combined, seen)
}

// truncateWithHash shortens name to fit maxSanitizedLen, appending a 6-hex
// digest of the full, untruncated name so distinct long names that share a
// common prefix remain distinguishable. On the astronomically unlikely
// event of a hash collision with an already-registered name, subsequent
// bytes of the digest are rotated in until the result is unique.
func truncateWithHash(name string, seen map[string]bool) string {
	sum := sha1.Sum([]byte(name))
	full := hex.EncodeToString(sum[:])
	prefixLen := maxSanitizedLen - hashSuffixLen
	if prefixLen < 0 {
		prefixLen = 0
	}
	base := name
	if len(base) > prefixLen {
		base = base[:prefixLen]
	}
	for offset := 0; offset+6 <= len(full); offset += 2 {
		candidate := fmt.Sprintf("%s_%s", base, full[offset:offset+6])
		if seen == nil || !seen[candidate] {
			return candidate
		}
	}
	// Exhausted the digest; fall back to a longer suffix window, which can
	// only happen if the same manager somehow registers an enormous number
	// of collisions against one prefix.
	return fmt.Sprintf("%s_%s", base, full)
}
