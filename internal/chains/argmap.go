package chains

import (
	"strings"
)

// BuildArguments materializes a target's argument mappings against the
// tool's result payload and the original input parameters. A mapping is
// either a directive
// object ({"source": path}, {"value": literal}, {"input": paramName}) or a
// bare literal assigned verbatim. Mappings never error; an unresolvable
// input reference simply leaves the parameter out.
func BuildArguments(mappings map[string]any, result any, input map[string]any) map[string]any {
	args := make(map[string]any, len(mappings))
	for param, raw := range mappings {
		spec, ok := raw.(map[string]any)
		if !ok {
			args[param] = raw
			continue
		}
		if src, present := spec["source"]; present {
			path, sok := src.(string)
			if !sok {
				continue
			}
			args[param] = resolveSource(result, path)
			continue
		}
		if val, present := spec["value"]; present {
			args[param] = val
			continue
		}
		if name, present := spec["input"]; present {
			key, sok := name.(string)
			if !sok {
				continue
			}
			if v, exists := input[key]; exists {
				args[param] = v
			}
			continue
		}
		// No recognized directive: the object itself is the literal.
		args[param] = spec
	}
	return args
}

// resolveSource resolves a source path. The path "result" addresses the
// whole result object; a "result." prefix is equivalent to addressing the
// field directly.
func resolveSource(result any, path string) any {
	if path == "result" {
		return result
	}
	return ResolveField(result, strings.TrimPrefix(path, "result."))
}
