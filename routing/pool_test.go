package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/network"
	"github.com/kvrouter/kvrouter/routes"
)

func TestMakePoolBasic(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"foo": {"servers": ["10.0.0.1:11211:ascii"]}
		}
	}`, Options{}, nil)

	handles, err := s.factory.Create(config.String("Pool|foo"))
	require.NoError(t, err)
	require.Len(t, handles, 1)

	dr, ok := handles[0].(*routes.DestinationRoute)
	require.True(t, ok)
	assert.Equal(t, "foo", dr.PoolName())
	assert.Equal(t, 0, dr.Index())
	assert.Equal(t, DefaultServerTimeout, dr.Timeout())
	assert.False(t, dr.KeepRoutingPrefix())

	ap := dr.Destination().AccessPoint()
	assert.Equal(t, "10.0.0.1", ap.Host())
	assert.Equal(t, uint16(11211), ap.Port())
	assert.Equal(t, network.ProtocolASCII, ap.Protocol())
	assert.Equal(t, network.SecurityNone, ap.SecurityMech())
	assert.False(t, ap.Compressed())

	connect, request := dr.Destination().ShortestTimeouts()
	assert.Equal(t, DefaultServerTimeout, connect)
	assert.Equal(t, DefaultServerTimeout, request)

	assert.Equal(t, 1, s.registry.Len())
}

func TestMakePoolIdentityStable(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"foo": {"servers": ["10.0.0.1:11211", "10.0.0.2:11211"]}
		}
	}`, Options{}, nil)

	first, err := s.factory.Create(config.String("Pool|foo"))
	require.NoError(t, err)
	second, err := s.factory.Create(config.String("Pool|foo"))
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
}

func TestMakePoolOrderPreserved(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"foo": {"servers": ["10.0.0.1:11211", "10.0.0.2:11211", "10.0.0.3:11211"]}
		}
	}`, Options{}, nil)

	handles, err := s.factory.Create(config.String("Pool|foo"))
	require.NoError(t, err)
	require.Len(t, handles, 3)

	for i, want := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		dr := handles[i].(*routes.DestinationRoute)
		assert.Equal(t, i, dr.Index())
		assert.Equal(t, want, dr.Destination().AccessPoint().Host())
	}

	aps := s.provider.AccessPoints()["foo"]
	require.Len(t, aps, 3)
	assert.Equal(t, "10.0.0.2", aps[1].Host())
}

func TestTieredTimeouts(t *testing.T) {
	const doc = `{
		"pools": {
			"local":  {"region": "A", "cluster": "X", "servers": ["10.0.0.1:11211"]},
			"nearby": {"region": "A", "cluster": "Y", "servers": ["10.0.0.2:11211"]},
			"far":    {"region": "B", "cluster": "X", "servers": ["10.0.0.3:11211"]},
			"bare":   {"servers": ["10.0.0.4:11211"]}
		}
	}`

	opts := Options{
		Region:               "A",
		Cluster:              "X",
		ServerTimeout:        time.Second,
		WithinClusterTimeout: 100 * time.Millisecond,
		CrossClusterTimeout:  200 * time.Millisecond,
		CrossRegionTimeout:   300 * time.Millisecond,
	}

	timeoutOf := func(t *testing.T, s *testSetup, name string) time.Duration {
		t.Helper()
		handles, err := s.factory.Create(config.String("Pool|" + name))
		require.NoError(t, err)
		require.Len(t, handles, 1)

		return handles[0].(*routes.DestinationRoute).Timeout()
	}

	s := newTestSetup(t, doc, opts, nil)
	assert.Equal(t, 100*time.Millisecond, timeoutOf(t, s, "local"))
	assert.Equal(t, 200*time.Millisecond, timeoutOf(t, s, "nearby"))
	assert.Equal(t, 300*time.Millisecond, timeoutOf(t, s, "far"))
	assert.Equal(t, time.Second, timeoutOf(t, s, "bare"))

	t.Run("zero override never replaces the base timeout", func(t *testing.T) {
		opts := opts
		opts.WithinClusterTimeout = 0
		s := newTestSetup(t, doc, opts, nil)
		assert.Equal(t, time.Second, timeoutOf(t, s, "local"))
	})

	t.Run("per pool server_timeout is the base", func(t *testing.T) {
		s := newTestSetup(t, `{
			"pools": {
				"p": {"server_timeout": 50, "servers": ["10.0.0.1:11211"]}
			}
		}`, Options{}, nil)
		assert.Equal(t, 50*time.Millisecond, timeoutOf(t, s, "p"))
	})

	t.Run("tier override beats per pool server_timeout", func(t *testing.T) {
		s := newTestSetup(t, `{
			"pools": {
				"p": {"region": "B", "cluster": "Z", "server_timeout": 50, "servers": ["10.0.0.1:11211"]}
			}
		}`, opts, nil)
		assert.Equal(t, 300*time.Millisecond, timeoutOf(t, s, "p"))
	})
}

func TestMakePoolRecoverableRegionCluster(t *testing.T) {
	// Malformed region/cluster types are reported, not fatal; the tiering is
	// simply skipped.
	s := newTestSetup(t, `{
		"pools": {
			"p": {"region": 123, "cluster": "X", "servers": ["10.0.0.1:11211"]}
		}
	}`, Options{
		Region:               "A",
		Cluster:              "X",
		ServerTimeout:        time.Second,
		CrossRegionTimeout:   300 * time.Millisecond,
		WithinClusterTimeout: 100 * time.Millisecond,
	}, nil)

	handles, err := s.factory.Create(config.String("Pool|p"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, handles[0].(*routes.DestinationRoute).Timeout())
}

func TestSecurityOverrides(t *testing.T) {
	const doc = `{
		"pools": {
			"p": {
				"security_mech": "plain",
				"security_mech_within_dc": "ssl",
				"security_mech_cross_dc": "tls_to_plain",
				"port_override_within_dc": 1234,
				"port_override_cross_dc": 5678,
				"servers": ["cache1.dc1.example.com:11211", "cache1.dc2.example.com:11211"]
			}
		}
	}`

	t.Run("local and remote endpoints get their own overrides", func(t *testing.T) {
		s := newTestSetup(t, doc, Options{
			EnableSecurityConfig: true,
			LocalDatacenter:      "dc1",
		}, nil)

		handles, err := s.factory.Create(config.String("Pool|p"))
		require.NoError(t, err)
		require.Len(t, handles, 2)

		local := handles[0].(*routes.DestinationRoute).Destination().AccessPoint()
		assert.Equal(t, network.SecurityTLS, local.SecurityMech())
		assert.Equal(t, uint16(1234), local.Port())

		remote := handles[1].(*routes.DestinationRoute).Destination().AccessPoint()
		assert.Equal(t, network.SecurityTLSToPlaintext, remote.SecurityMech())
		assert.Equal(t, uint16(5678), remote.Port())
	})

	t.Run("mech and port apply independently", func(t *testing.T) {
		s := newTestSetup(t, `{
			"pools": {
				"p": {
					"security_mech_within_dc": "ssl",
					"servers": ["cache1.dc1.example.com:11211", "cache1.dc2.example.com:11211"]
				}
			}
		}`, Options{EnableSecurityConfig: true, LocalDatacenter: "dc1"}, nil)

		handles, err := s.factory.Create(config.String("Pool|p"))
		require.NoError(t, err)

		local := handles[0].(*routes.DestinationRoute).Destination().AccessPoint()
		assert.Equal(t, network.SecurityTLS, local.SecurityMech())
		assert.Equal(t, uint16(11211), local.Port())

		// No cross-DC override configured: the remote endpoint is untouched.
		remote := handles[1].(*routes.DestinationRoute).Destination().AccessPoint()
		assert.Equal(t, network.SecurityNone, remote.SecurityMech())
		assert.Equal(t, uint16(11211), remote.Port())
	})

	t.Run("legacy use_ssl", func(t *testing.T) {
		s := newTestSetup(t, `{
			"pools": {"p": {"use_ssl": true, "servers": ["10.0.0.1:11211"]}}
		}`, Options{EnableSecurityConfig: true}, nil)

		handles, err := s.factory.Create(config.String("Pool|p"))
		require.NoError(t, err)
		ap := handles[0].(*routes.DestinationRoute).Destination().AccessPoint()
		assert.Equal(t, network.SecurityTLS, ap.SecurityMech())
	})

	t.Run("security config disabled means no security", func(t *testing.T) {
		s := newTestSetup(t, doc, Options{LocalDatacenter: "dc1"}, nil)

		handles, err := s.factory.Create(config.String("Pool|p"))
		require.NoError(t, err)
		for _, h := range handles {
			ap := h.(*routes.DestinationRoute).Destination().AccessPoint()
			assert.Equal(t, network.SecurityNone, ap.SecurityMech())
			assert.Equal(t, uint16(11211), ap.Port())
		}
	})
}

func TestThriftSecurityFatal(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"p": {
				"protocol": "thrift",
				"security_mech": "tls13_fizz",
				"servers": ["10.0.0.1:11211"]
			}
		}
	}`, Options{EnableSecurityConfig: true}, nil)

	_, err := s.factory.Create(config.String("Pool|p"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thrift")
	assert.Contains(t, err.Error(), "Pool p")

	// The failure happens before any destination is registered.
	assert.Equal(t, 0, s.registry.Len())
}

func TestMakePoolValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		want string
	}{{
		name: "missing servers",
		doc:  `{"pools": {"p": {}}}`,
		want: "Pool p: servers not found",
	}, {
		name: "servers not array",
		doc:  `{"pools": {"p": {"servers": "10.0.0.1:11211"}}}`,
		want: "Pool p: servers is not an array",
	}, {
		name: "hostnames length mismatch",
		doc:  `{"pools": {"p": {"servers": ["10.0.0.1:11211"], "hostnames": ["a", "b"]}}}`,
		want: "Pool p: hostnames expected to be of the same size as servers, expected 1, got 2",
	}, {
		name: "hostnames not array",
		doc:  `{"pools": {"p": {"servers": ["10.0.0.1:11211"], "hostnames": "a"}}}`,
		want: "Pool p: hostnames is not an array",
	}, {
		name: "unknown protocol",
		doc:  `{"pools": {"p": {"protocol": "binary", "servers": ["10.0.0.1:11211"]}}}`,
		want: "Pool p: unknown protocol 'binary'",
	}, {
		name: "qos class out of range",
		doc:  `{"pools": {"p": {"qos": {"class": 5}, "servers": ["10.0.0.1:11211"]}}}`,
		want: "Pool p: qos.class out of range: 5 not in [0, 4]",
	}, {
		name: "qos not an object",
		doc:  `{"pools": {"p": {"qos": 3, "servers": ["10.0.0.1:11211"]}}}`,
		want: "Pool p: qos must be an object",
	}, {
		name: "server neither string nor object",
		doc:  `{"pools": {"p": {"servers": [42]}}}`,
		want: "Pool p: server #0 is not a string/object",
	}, {
		name: "bad server timeout",
		doc:  `{"pools": {"p": {"server_timeout": "fast", "servers": ["10.0.0.1:11211"]}}}`,
		want: "Pool p: server_timeout is not an integer",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSetup(t, tc.doc, Options{}, nil)
			_, err := s.factory.Create(config.String("Pool|p"))
			require.Error(t, err)
			assert.EqualError(t, err, tc.want)
			assert.True(t, config.IsError(err))
		})
	}
}

func TestMakePoolNestedRoute(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"p": {"servers": ["10.0.0.1:11211", {"type": "NullRoute"}]}
		}
	}`, Options{}, nil)

	handles, err := s.factory.Create(config.String("Pool|p"))
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.IsType(t, &routes.DestinationRoute{}, handles[0])
	assert.IsType(t, &routes.NullRoute{}, handles[1])

	// Only the string entry resolved to an endpoint.
	assert.Len(t, s.provider.AccessPoints()["p"], 1)
}

func TestMakePoolQoS(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"p": {"qos": {"class": 2, "path": 1}, "servers": ["10.0.0.1:11211"]}
		}
	}`, Options{}, nil)

	handles, err := s.factory.Create(config.String("Pool|p"))
	require.NoError(t, err)
	key := handles[0].(*routes.DestinationRoute).Destination().Key()
	assert.Equal(t, uint64(2), key.QoSClass)
	assert.Equal(t, uint64(1), key.QoSPath)
}

func TestMakePoolCompression(t *testing.T) {
	s := newTestSetup(t, `{
		"pools": {
			"p": {"enable_compression": true, "servers": ["10.0.0.1:11211"]}
		}
	}`, Options{}, nil)

	handles, err := s.factory.Create(config.String("Pool|p"))
	require.NoError(t, err)
	ap := handles[0].(*routes.DestinationRoute).Destination().AccessPoint()
	assert.True(t, ap.Compressed())
}

func TestMakePoolSharedDestinations(t *testing.T) {
	// Two pools naming the same endpoint with the same transport parameters
	// share one destination.
	s := newTestSetup(t, `{
		"pools": {
			"a": {"servers": ["10.0.0.1:11211"]},
			"b": {"servers": ["10.0.0.1:11211"]}
		}
	}`, Options{}, nil)

	ha, err := s.factory.Create(config.String("Pool|a"))
	require.NoError(t, err)
	hb, err := s.factory.Create(config.String("Pool|b"))
	require.NoError(t, err)

	da := ha[0].(*routes.DestinationRoute).Destination()
	db := hb[0].(*routes.DestinationRoute).Destination()
	assert.Same(t, da, db)
	assert.Equal(t, 1, s.registry.Len())
}
