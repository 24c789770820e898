package memory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pet-marketplace/internal/ports/backend"
)

func matchAll(r backend.Row, filters []backend.Filter) bool {
	for _, f := range filters {
		if !matchFilter(r, f) {
			return false
		}
	}
	return true
}

func matchAny(r backend.Row, filters []backend.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matchFilter(r, f) {
			return true
		}
	}
	return false
}

func matchFilter(r backend.Row, f backend.Filter) bool {
	v, ok := r[f.Column]
	switch f.Op {
	case backend.OpEq:
		return ok && compareValues(v, normalizeValue(f.Value)) == 0
	case backend.OpNeq:
		return !ok || compareValues(v, normalizeValue(f.Value)) != 0
	case backend.OpLte:
		return ok && v != nil && compareValues(v, normalizeValue(f.Value)) <= 0
	case backend.OpGte:
		return ok && v != nil && compareValues(v, normalizeValue(f.Value)) >= 0
	case backend.OpILike:
		if !ok || v == nil {
			return false
		}
		pattern, _ := f.Value.(string)
		return likeRegexp(pattern).MatchString(fmt.Sprint(v))
	case backend.OpIn:
		if !ok {
			return false
		}
		values, _ := f.Value.([]string)
		s := fmt.Sprint(v)
		for _, want := range values {
			if s == want {
				return true
			}
		}
		return false
	}
	return false
}

// likeRegexp traduce un patrón ILIKE (% y _) a regexp case-insensitive anclada.
func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// compareValues compara como número, luego como fecha y por último como texto.
// nil es menor que cualquier valor.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		return 0, false
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
