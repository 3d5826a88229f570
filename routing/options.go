/*
Package routing compiles declarative route configurations into executable
route handle trees. The Provider owns the recursive construction: it resolves
pools into destination leaves through the process-wide destination registry,
composes hash, failover, shadow, rate-limit, shard-split and asynclog routes
on top of them, and dispatches extensible route types through a pluggable
extra provider.

Compilation is single threaded per router instance. The pool cache and the
asynclog dedup cache are scoped to one compilation pass; only the destination
registry is shared across passes and concurrently reloading instances.
*/
package routing

import (
	"time"

	"github.com/kvrouter/kvrouter/network"
)

// DefaultServerTimeout applies when Options leaves ServerTimeout unset.
const DefaultServerTimeout = time.Second

// Options is the immutable router configuration context passed through the
// factory and all builders. Topology identity drives the tiered timeout and
// security overrides; feature flags gate optional route wrapping.
type Options struct {
	// Region and Cluster identify the router's own position for tiered
	// timeout policy.
	Region  string
	Cluster string

	// LocalDatacenter identifies the router's datacenter for per-DC security
	// and port overrides.
	LocalDatacenter string

	// ServerTimeout is the base request timeout for pool destinations,
	// overridable per pool and by the tiered policy below.
	ServerTimeout time.Duration

	// Tiered timeout overrides; zero means "do not override".
	WithinClusterTimeout time.Duration
	CrossClusterTimeout  time.Duration
	CrossRegionTimeout   time.Duration

	DefaultQoSClass uint64
	DefaultQoSPath  uint64

	EnableCompression    bool
	EnableSecurityConfig bool

	AsynclogDisable        bool
	DisableShardSplitRoute bool

	// Codecs is the shared compression codec manager. When nil, the provider
	// attempts to initialize one on first use and disables compression per
	// endpoint if that fails.
	Codecs *network.CodecManager
}

func (o Options) serverTimeout() time.Duration {
	if o.ServerTimeout <= 0 {
		return DefaultServerTimeout
	}

	return o.ServerTimeout
}
