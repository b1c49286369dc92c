package geo

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Properties is an insertion-ordered string-keyed map of feature attributes.
// The zero value is ready to use.
type Properties struct {
	values map[string]any
	keys   []string
}

// NewProperties returns an empty property set with room for n keys.
func NewProperties(n int) Properties {
	return Properties{keys: make([]string, 0, n), values: make(map[string]any, n)}
}

// Set stores v under key, keeping the original position of an existing key.
func (p *Properties) Set(key string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order. The slice must not be modified.
func (p Properties) Keys() []string { return p.keys }

// Len returns the number of keys.
func (p Properties) Len() int { return len(p.keys) }

// Clone returns an independent copy. Nested values are shared.
func (p Properties) Clone() Properties {
	c := NewProperties(len(p.keys))
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Map returns a plain map copy.
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p.keys))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// TrimKeys removes leading and trailing whitespace from every key.
// When two keys collapse to the same name the later value wins and the earlier position is kept.
func (p *Properties) TrimKeys() {
	dirty := false
	for _, k := range p.keys {
		if strings.TrimSpace(k) != k {
			dirty = true
			break
		}
	}
	if !dirty {
		return
	}

	out := NewProperties(len(p.keys))
	for _, k := range p.keys {
		out.Set(strings.TrimSpace(k), p.values[k])
	}
	*p = out
}

// MarshalJSON writes the properties as a JSON object in insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the document key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	*p = PropertiesFromJSON(gjson.ParseBytes(data))
	return nil
}

// PropertiesFromJSON converts a gjson object into ordered properties.
// Non-object input yields an empty set.
func PropertiesFromJSON(obj gjson.Result) Properties {
	props := NewProperties(0)
	if !obj.IsObject() {
		return props
	}
	obj.ForEach(func(key, value gjson.Result) bool {
		props.Set(key.String(), value.Value())
		return true
	})

	return props
}
