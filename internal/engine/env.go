package engine

import (
	"sort"
	"strings"

	"github.com/pipewerk/pipewerk/internal/secrets"
)

// mergeEnv flattens the given KEY=VALUE lists into one, later lists winning,
// and returns the entries sorted for deterministic child environments.
func mergeEnv(lists ...[]string) []string {
	merged := make(map[string]string)
	for _, list := range lists {
		for _, kv := range list {
			if idx := strings.Index(kv, "="); idx > 0 {
				merged[kv[:idx]] = kv[idx+1:]
			}
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}

// lookupIn adapts a KEY=VALUE list to the secrets lookup interface. Later
// entries win, matching mergeEnv.
func lookupIn(environ []string) secrets.LookupFunc {
	return func(name string) (string, bool) {
		prefix := name + "="
		for i := len(environ) - 1; i >= 0; i-- {
			if strings.HasPrefix(environ[i], prefix) {
				return environ[i][len(prefix):], true
			}
		}
		return "", false
	}
}

// mapToEnv converts an env map into KEY=VALUE entries.
func mapToEnv(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
