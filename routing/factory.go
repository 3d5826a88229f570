package routing

import (
	"strings"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/routes"
)

// Factory is the recursive construction capability handed to every builder.
// It resolves a configuration node to route handles through its provider and
// carries the identifier of the compiling thread for thread-affinity
// sensitive hash implementations.
type Factory struct {
	provider *Provider
	threadID uint32
}

func NewFactory(provider *Provider, threadID uint32) *Factory {
	return &Factory{provider: provider, threadID: threadID}
}

func (f *Factory) ThreadID() uint32 { return f.threadID }

// Create builds the route handles described by a configuration node. Object
// nodes carry a "type" field; string nodes use the "Type|argument" shorthand,
// where the argument becomes a string configuration for the named type.
func (f *Factory) Create(n config.Node) ([]routes.Handle, error) {
	switch {
	case n.IsString():
		typ := n.Str()
		arg := config.Node{}
		if i := strings.IndexByte(typ, '|'); i >= 0 {
			arg = config.String(typ[i+1:])
			typ = typ[:i]
		}
		if typ == "" {
			return nil, config.Errorf("route type is empty")
		}

		return f.provider.Create(f, typ, arg)

	case n.IsObject():
		jtype := n.Get("type")
		typ, err := config.ParseString(jtype, "type")
		if err != nil {
			return nil, err
		}

		return f.provider.Create(f, typ, n)
	}

	return nil, config.Errorf("route should be a string or an object")
}

// CreateOne builds exactly one route handle from a configuration node.
func (f *Factory) CreateOne(n config.Node) (routes.Handle, error) {
	handles, err := f.Create(n)
	if err != nil {
		return nil, err
	}
	if len(handles) != 1 {
		return nil, config.Errorf("expected a single route handle, got %d", len(handles))
	}

	return handles[0], nil
}

// CreateList builds handles from a node that is either a single route or an
// array of routes, flattening the results in order. An absent node yields an
// empty sequence, so callers can report a missing field in their own terms.
func (f *Factory) CreateList(n config.Node) ([]routes.Handle, error) {
	if !n.Exists() {
		return nil, nil
	}
	if !n.IsArray() {
		return f.Create(n)
	}

	var handles []routes.Handle
	for _, elem := range n.Array() {
		hs, err := f.Create(elem)
		if err != nil {
			return nil, err
		}
		handles = append(handles, hs...)
	}

	return handles, nil
}
