package strategies

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Params is the free-form parameter bundle a strategy is built from. Values
// usually come from a config file or flags, so numbers may arrive as ints,
// floats or strings; the typed getters convert them.
type Params map[string]any

func (p Params) lookup(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// Set returns p with key set, allocating the map if needed.
func (p Params) Set(key string, v any) Params {
	if p == nil {
		p = Params{}
	}
	p[strings.ToLower(key)] = v
	return p
}

// paramReader records the first conversion error so factories can read all
// their parameters and check once.
type paramReader struct {
	p   Params
	err error
}

func (p Params) reader() *paramReader { return &paramReader{p: p} }

func (r *paramReader) Float(key string, def float64) float64 {
	v, ok := r.p.lookup(key)
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		r.fail(key, v, "number")
		return def
	}
	return f
}

func (r *paramReader) Int(key string, def int) int {
	v, ok := r.p.lookup(key)
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		r.fail(key, v, "integer")
		return def
	}
	return i
}

func (r *paramReader) Bool(key string, def bool) bool {
	v, ok := r.p.lookup(key)
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		r.fail(key, v, "boolean")
		return def
	}
	return b
}

func (r *paramReader) fail(key string, v any, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid value for %s: %q (expected %s)", key, fmt.Sprint(v), want)
	}
}

func (r *paramReader) check(cond bool, format string, args ...any) {
	if r.err == nil && !cond {
		r.err = fmt.Errorf(format, args...)
	}
}
