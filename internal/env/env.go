// Package env composes the environment handed to launched services:
// OS base, global overrides from config, then per-service entries, with
// simple ${VAR} expansion over the composed map.
package env

import (
	"os"
	"sort"
	"strings"
)

type Env struct {
	overrides map[string]string
	base      map[string]string // cached OS environment
}

func New() *Env {
	return &Env{overrides: make(map[string]string)}
}

// UseOS caches the current process environment as the base layer.
func (e *Env) UseOS() {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := splitKV(kv); ok {
			base[k] = v
		}
	}
	e.base = base
}

// Set records a global KEY=VALUE override.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	e.overrides[k] = v
}

// SetAll records a list of "KEY=VALUE" overrides, skipping malformed entries.
func (e *Env) SetAll(kvs []string) {
	for _, kv := range kvs {
		if k, v, ok := splitKV(kv); ok {
			e.Set(k, v)
		}
	}
}

// Merge builds the final "KEY=VALUE" slice for one service.
// Precedence, lowest first: cached OS base (if UseOS was called),
// global overrides, perService entries. ${VAR} references are expanded
// against the composed map, one pass, no recursion. Output is sorted
// for deterministic exec environments.
func (e *Env) Merge(perService []string) []string {
	m := make(map[string]string, len(e.base)+len(e.overrides)+len(perService))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.overrides {
		m[k] = v
	}
	for _, kv := range perService {
		if k, v, ok := splitKV(kv); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

func splitKV(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(k string) string {
		if v, ok := m[k]; ok {
			return v
		}
		return ""
	})
}
