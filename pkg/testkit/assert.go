package testkit

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// AssertJSONSubset fails unless every key in want appears in got with an
// equal value. Arrays must match element by element.
func AssertJSONSubset(t *testing.T, want, got []byte) {
	t.Helper()
	var w, g any
	require.NoError(t, json.Unmarshal(want, &w), "expected body is not JSON")
	require.NoError(t, json.Unmarshal(got, &g), "response is not JSON: %s", got)

	if diff := cmp.Diff(w, prune(w, g)); diff != "" {
		t.Errorf("response body mismatch (-want +got):\n%s", diff)
	}
}

// prune drops from got every object key want does not mention.
func prune(want, got any) any {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return got
		}
		out := make(map[string]any, len(w))
		for k, wv := range w {
			if gv, ok := g[k]; ok {
				out[k] = prune(wv, gv)
			}
		}
		return out
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return got
		}
		out := make([]any, len(g))
		for i := range g {
			out[i] = prune(w[i], g[i])
		}
		return out
	default:
		return got
	}
}
