package wire

import "strings"

// DecodeCustomVars parses the ASCII "k:v,k:v,..." custom_vars payload
// (spec.md §4.2). Empty entries and entries without a colon are
// skipped rather than failing the frame, matching the codec's general
// "never fail the whole frame on a cosmetic parse issue" posture.
func DecodeCustomVars(b []byte) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(string(b), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// EncodeCustomVars is the inverse of DecodeCustomVars, used by test
// fixtures and device stubs. Iteration order is not wire-significant.
func EncodeCustomVars(vars map[string]string) []byte {
	parts := make([]string, 0, len(vars))
	for k, v := range vars {
		parts = append(parts, k+":"+v)
	}
	return []byte(strings.Join(parts, ","))
}
