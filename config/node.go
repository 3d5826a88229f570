/*
Package config provides the dynamically typed configuration tree that route
construction consumes, together with the parsing helpers and the fatal
configuration error type shared by all builders.

A Node is an immutable view into a JSON document. Nodes remember their byte
offset in the source document, so error messages can point at the 1-based
line of the offending field when the node originates from a parsed document.
Synthetic nodes (see Object) carry no position information.
*/
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type document struct {
	src string
}

// Node is a read-only, dynamically typed configuration value.
type Node struct {
	res gjson.Result
	doc *document
}

// Parse validates and parses a JSON document into a root Node.
func Parse(src string) (Node, error) {
	if !gjson.Valid(src) {
		return Node{}, Errorf("invalid JSON in configuration document")
	}

	return Node{res: gjson.Parse(src), doc: &document{src: src}}, nil
}

// String returns a synthetic string Node, used when expanding shorthand
// route references like "Pool|name".
func String(s string) Node {
	return Node{res: gjson.Result{Type: gjson.String, Str: s, Raw: strconv.Quote(s)}}
}

func (n Node) Exists() bool   { return n.res.Exists() }
func (n Node) IsObject() bool { return n.res.IsObject() }
func (n Node) IsArray() bool  { return n.res.IsArray() }
func (n Node) IsString() bool { return n.res.Type == gjson.String }

func (n Node) IsNumber() bool {
	return n.res.Type == gjson.Number
}

func (n Node) IsBool() bool {
	return n.res.Type == gjson.True || n.res.Type == gjson.False
}

func (n Node) Str() string   { return n.res.String() }
func (n Node) Int() int64    { return n.res.Int() }
func (n Node) Float() float64 { return n.res.Float() }
func (n Node) Bool() bool    { return n.res.Bool() }

// Raw returns the raw JSON text of the node, suitable for splicing into an
// Object builder.
func (n Node) Raw() string { return n.res.Raw }

// Get returns the named field of an object node. The returned Node reports
// Exists() == false when the field is absent.
func (n Node) Get(key string) Node {
	return Node{res: n.res.Get(key), doc: n.doc}
}

// Array returns the elements of an array node in document order.
func (n Node) Array() []Node {
	elems := n.res.Array()
	nodes := make([]Node, len(elems))
	for i, e := range elems {
		nodes[i] = Node{res: e, doc: n.doc}
	}

	return nodes
}

// ForEach iterates the fields of an object node in document order. Iteration
// stops when fn returns false.
func (n Node) ForEach(fn func(key string, value Node) bool) {
	n.res.ForEach(func(k, v gjson.Result) bool {
		return fn(k.String(), Node{res: v, doc: n.doc})
	})
}

// Line returns the 1-based line number of the node in its source document,
// or zero when the node is synthetic or the offset is unknown.
func (n Node) Line() int {
	if n.doc == nil || n.res.Index <= 0 || n.res.Index > len(n.doc.src) {
		return 0
	}

	return 1 + strings.Count(n.doc.src[:n.res.Index], "\n")
}

// ParseString requires n to be a string.
func ParseString(n Node, field string) (string, error) {
	if !n.IsString() {
		return "", Errorf("%s is not a string", field)
	}

	return n.Str(), nil
}

// ParseBool requires n to be a boolean.
func ParseBool(n Node, field string) (bool, error) {
	if !n.IsBool() {
		return false, Errorf("%s is not a boolean", field)
	}

	return n.Bool(), nil
}

// ParseInt requires n to be an integer within [min, max].
func ParseInt(n Node, field string, min, max int64) (int64, error) {
	if !n.IsNumber() || n.Float() != float64(n.Int()) {
		return 0, Errorf("%s is not an integer", field)
	}

	v := n.Int()
	if v < min || v > max {
		return 0, Errorf("%s out of range: %d not in [%d, %d]", field, v, min, max)
	}

	return v, nil
}

// ParseTimeout requires n to be a positive integer number of milliseconds.
func ParseTimeout(n Node, field string) (time.Duration, error) {
	ms, err := ParseInt(n, field, 1, int64(time.Hour/time.Millisecond))
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}
