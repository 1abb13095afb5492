package vars

import "strings"

// Var is one CGI-style name/value pair.
type Var struct {
	Name  string
	Value string
}

// Vars is an ordered variable mapping with unique names.
// A name keeps the position of its first write; later writes replace the value in place.
type Vars struct {
	list  []Var
	index map[string]int
}

func New() *Vars {
	return &Vars{
		list:  make([]Var, 0, 24),
		index: make(map[string]int, 24),
	}
}

func (v *Vars) Len() int {
	return len(v.list)
}

func (v *Vars) Get(name string) (string, bool) {
	i, ok := v.index[name]
	if !ok {
		return "", false
	}
	return v.list[i].Value, true
}

// Set writes name unconditionally.
func (v *Vars) Set(name, value string) {
	if i, ok := v.index[name]; ok {
		v.list[i].Value = value
		return
	}
	v.index[name] = len(v.list)
	v.list = append(v.list, Var{Name: name, Value: value})
}

// SetIfEmpty writes name only when it is missing or holds an empty value.
// It reports whether the write happened.
func (v *Vars) SetIfEmpty(name, value string) bool {
	if cur, ok := v.Get(name); ok && cur != "" {
		return false
	}
	v.Set(name, value)
	return true
}

// Each visits variables in insertion order.
func (v *Vars) Each(fn func(name, value string)) {
	for _, kv := range v.list {
		fn(kv.Name, kv.Value)
	}
}

// List returns a copy of the variables in insertion order.
func (v *Vars) List() []Var {
	out := make([]Var, len(v.list))
	copy(out, v.list)
	return out
}

func (v *Vars) Map() map[string]string {
	out := make(map[string]string, len(v.list))
	for _, kv := range v.list {
		out[kv.Name] = kv.Value
	}
	return out
}

// HeaderValue looks name up in headers ignoring case.
func HeaderValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
