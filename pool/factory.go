/*
Package pool resolves pool references found in route configurations to their
canonical name and configuration subtree. References are either a bare pool
name or an inline object carrying a "name" field; named pools are defined in
the top-level "pools" object of the router configuration.
*/
package pool

import (
	"github.com/kvrouter/kvrouter/config"
)

// JSON is a resolved pool: its canonical name plus configuration subtree.
type JSON struct {
	Name string
	Node config.Node
}

// Factory memoizes pool resolution for one router configuration.
type Factory struct {
	defined map[string]config.Node
	parsed  map[string]JSON
}

// NewFactory reads the "pools" object of the router configuration. A missing
// or non-object "pools" field leaves the factory empty; inline pool objects
// still resolve.
func NewFactory(root config.Node) *Factory {
	f := &Factory{
		defined: make(map[string]config.Node),
		parsed:  make(map[string]JSON),
	}

	if pools := root.Get("pools"); pools.IsObject() {
		pools.ForEach(func(name string, n config.Node) bool {
			f.defined[name] = n
			return true
		})
	}

	return f
}

// ParsePool resolves a pool reference. String references must name a defined
// pool. Object references must carry a string "name"; when the name matches
// a defined pool the definition wins, otherwise the inline object is the
// pool configuration.
func (f *Factory) ParsePool(n config.Node) (JSON, error) {
	switch {
	case n.IsString():
		name := n.Str()
		if p, ok := f.parsed[name]; ok {
			return p, nil
		}

		def, ok := f.defined[name]
		if !ok {
			return JSON{}, config.Errorf("pool '%s' not found", name)
		}

		p := JSON{Name: name, Node: def}
		f.parsed[name] = p

		return p, nil

	case n.IsObject():
		jname := n.Get("name")
		name, err := config.ParseString(jname, "pool name")
		if err != nil {
			return JSON{}, err
		}

		if p, ok := f.parsed[name]; ok {
			return p, nil
		}

		node := n
		if def, ok := f.defined[name]; ok {
			node = def
		}

		p := JSON{Name: name, Node: node}
		f.parsed[name] = p

		return p, nil
	}

	return JSON{}, config.Errorf("pool should be a string or an object")
}
