// Package chains implements the tool-chain orchestration engine. Given the
// result of a finished tool call and the configured chains, it decides which
// follow-up tool calls to suggest to the calling agent and where the call
// sits inside a running chain.
package chains

import (
	"strconv"
	"strings"
)

// ResolveField walks a dot-separated path into decoded JSON data. Segments
// address map keys or list indices; the pseudo-segment "length" yields the
// size of a list or string. An empty path returns data itself. Any miss
// (unknown key, index out of range, traversal through a scalar) resolves to
// nil rather than an error.
func ResolveField(data any, path string) any {
	if path == "" {
		return data
	}
	cur := data
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			val, ok := v[seg]
			if !ok {
				return nil
			}
			cur = val
		case []any:
			if seg == "length" {
				cur = len(v)
				continue
			}
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			cur = v[idx]
		case string:
			if seg != "length" {
				return nil
			}
			cur = len(v)
		default:
			return nil
		}
	}
	return cur
}
