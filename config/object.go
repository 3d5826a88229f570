package config

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Object builds a synthetic JSON object node by raw-value splicing, keeping
// field insertion order. It backs the configuration rewrites the factory
// performs, such as hash-config merging and the SaltedFailoverRoute
// expansion.
type Object struct {
	keys []string
	raws map[string]string
}

func NewObject() *Object {
	return &Object{raws: make(map[string]string)}
}

// Set stores raw JSON under key, replacing any previous value but keeping
// the original insertion position.
func (o *Object) Set(key, raw string) *Object {
	if _, ok := o.raws[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.raws[key] = raw

	return o
}

// SetString stores a JSON string value under key.
func (o *Object) SetString(key, value string) *Object {
	return o.Set(key, strconv.Quote(value))
}

// Delete removes a field if present.
func (o *Object) Delete(key string) *Object {
	if _, ok := o.raws[key]; ok {
		delete(o.raws, key)
		for i, k := range o.keys {
			if k == key {
				o.keys = append(o.keys[:i], o.keys[i+1:]...)
				break
			}
		}
	}

	return o
}

// Len returns the number of fields set.
func (o *Object) Len() int { return len(o.keys) }

// Render returns the raw JSON text of the object.
func (o *Object) Render() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(o.raws[k])
	}
	b.WriteByte('}')

	return b.String()
}

// Node returns the built object as a synthetic Node.
func (o *Object) Node() Node {
	return Node{res: gjson.Parse(o.Render())}
}

// FromObject seeds a builder with the fields of an existing object node.
func FromObject(n Node) *Object {
	o := NewObject()
	n.ForEach(func(key string, value Node) bool {
		o.Set(key, value.Raw())
		return true
	})

	return o
}

// RawArray renders raw JSON values as a JSON array.
func RawArray(raws ...string) string {
	return "[" + strings.Join(raws, ",") + "]"
}

// RawString renders s as a JSON string value.
func RawString(s string) string {
	return strconv.Quote(s)
}
