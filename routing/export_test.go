package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/destination"
	"github.com/kvrouter/kvrouter/pool"
)

type testSetup struct {
	provider *Provider
	factory  *Factory
	registry *destination.Registry
	root     config.Node
}

func newTestSetup(t *testing.T, doc string, opts Options, extra ExtraProvider) *testSetup {
	t.Helper()

	root, err := config.Parse(doc)
	require.NoError(t, err)

	registry := destination.NewRegistry(nil)
	provider := NewProvider(opts, pool.NewFactory(root), registry, extra)

	return &testSetup{
		provider: provider,
		factory:  NewFactory(provider, 0),
		registry: registry,
		root:     root,
	}
}
