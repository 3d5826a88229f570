package routing

import (
	"fmt"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/routes"
)

// ExtraProvider supplies router-variant specific route types. The provider
// delegates shadow and failover construction to it entirely, lets it wrap
// pool destinations before hash selection, and falls back to TryCreate for
// types the built-in map does not know.
type ExtraProvider interface {
	// MakeShadow builds the handles for a ShadowRoute configuration. It may
	// return multiple handles, such as one per wrapped child.
	MakeShadow(f *Factory, n config.Node) ([]routes.Handle, error)

	// MakeFailover builds a failover route from a configuration carrying
	// "children".
	MakeFailover(f *Factory, n config.Node) (routes.Handle, error)

	// WrapPoolDestinations may wrap or transform a pool's destination
	// sequence before hash-function selection. It must preserve length and
	// order.
	WrapPoolDestinations(f *Factory, destinations []routes.Handle, poolName string, n config.Node) ([]routes.Handle, error)

	// TryCreate builds handles for custom route types. An empty result with
	// a nil error means the type is unrecognized.
	TryCreate(f *Factory, typ string, n config.Node) ([]routes.Handle, error)
}

// DefaultExtraProvider implements the stock shadow and failover route
// construction and recognizes no custom types.
type DefaultExtraProvider struct{}

func NewDefaultExtraProvider() *DefaultExtraProvider { return &DefaultExtraProvider{} }

func (*DefaultExtraProvider) MakeFailover(f *Factory, n config.Node) (routes.Handle, error) {
	if !n.IsObject() {
		return nil, config.Errorf("FailoverRoute should be an object")
	}

	children, err := f.CreateList(n.Get("children"))
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, config.Errorf("FailoverRoute: children not found")
	}

	var salt string
	if jsalt := n.Get("salt"); jsalt.Exists() {
		if salt, err = config.ParseString(jsalt, "salt"); err != nil {
			return nil, err
		}
	}

	return routes.NewFailoverRoute(children, salt), nil
}

func (*DefaultExtraProvider) MakeShadow(f *Factory, n config.Node) ([]routes.Handle, error) {
	if !n.IsObject() {
		return nil, config.Errorf("ShadowRoute should be an object")
	}

	children, err := f.CreateList(n.Get("children"))
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, config.Errorf("ShadowRoute: children not found")
	}

	jshadows := n.Get("shadows")
	if !jshadows.IsArray() {
		return nil, config.Errorf("ShadowRoute: shadows is not an array")
	}

	var shadows []routes.Handle
	for i, jshadow := range jshadows.Array() {
		if !jshadow.IsObject() {
			return nil, config.Errorf("ShadowRoute: shadow #%d is not an object", i)
		}
		target, err := f.CreateOne(jshadow.Get("target"))
		if err != nil {
			return nil, config.Errorf("ShadowRoute: shadow #%d: %w", i, err)
		}
		shadows = append(shadows, target)
	}

	wrapped := make([]routes.Handle, len(children))
	for i, child := range children {
		wrapped[i] = routes.NewShadowRoute(child, shadows)
	}

	return wrapped, nil
}

func (*DefaultExtraProvider) WrapPoolDestinations(_ *Factory, destinations []routes.Handle, _ string, _ config.Node) ([]routes.Handle, error) {
	return destinations, nil
}

func (*DefaultExtraProvider) TryCreate(*Factory, string, config.Node) ([]routes.Handle, error) {
	return nil, nil
}

var _ ExtraProvider = (*DefaultExtraProvider)(nil)

// checkWrapped guards the wrap contract at the one place it can break.
func checkWrapped(poolName string, before, after []routes.Handle) error {
	if len(before) != len(after) {
		return fmt.Errorf(
			"extra provider changed destination count for pool %s: %d != %d",
			poolName, len(before), len(after))
	}

	return nil
}
