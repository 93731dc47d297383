// Package deepmerge combines plain key/value mappings recursively. It exists
// to accumulate middleware-contributed action context, where later
// contributions override earlier ones key by key.
package deepmerge

// Keys that could reach or shadow a prototype chain once the merged context
// round-trips to a JavaScript client. They are silently dropped from the
// source side and never appear in the result.
var deniedKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Merge returns a new map combining target and source. Neither argument is
// mutated. For a key present in both, two plain maps merge recursively;
// any other pairing is resolved by the source value replacing the target
// value outright. Arrays are replaced wholesale, never merged element-wise.
func Merge(target, source map[string]any) map[string]any {
	result := make(map[string]any, len(target)+len(source))
	for k, v := range target {
		if _, denied := deniedKeys[k]; denied {
			continue
		}
		result[k] = v
	}

	for k, sv := range source {
		if _, denied := deniedKeys[k]; denied {
			continue
		}
		tm, tok := result[k].(map[string]any)
		sm, sok := sv.(map[string]any)
		if tok && sok {
			result[k] = Merge(tm, sm)
			continue
		}
		result[k] = sv
	}

	return result
}
