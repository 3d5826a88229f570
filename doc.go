/*
Package kvrouter provides the configuration-driven route compiler of a
distributed key-value cache proxy.

The core is a route-handle provider: it takes a declarative routing
specification, a JSON tree describing pools of backend servers and the
routing policy layered over them, and compiles it into an executable tree of
composable request routers. Inner nodes select, transform or replicate
requests (hash selection, failover, shadowing, rate limiting, shard
splitting, asynclog spooling); leaves are destinations bound to physical
backend connections, deduplicated process-wide.

Compilation resolves multi-tier policy from topology: per-pool timeouts
tiered by region and cluster distance, security mechanism and port overrides
by datacenter locality, and compression negotiation per endpoint. Repeated
references to the same pool or asynclog category within one compilation pass
reuse the same handles.

The packages involved:

  - config: the dynamically typed configuration tree and the fatal
    configuration error kind
  - network: endpoint descriptors, protocol and security enums, compression
    codecs
  - destination: the process-wide, deduplicating destination registry
  - pool: pool reference resolution
  - routes: the route handle interface and the concrete route types
  - routing: the recursive route handle factory and provider

The wire transport behind destinations and the request dispatch loop are
external collaborators; this module performs no network I/O.
*/
package kvrouter
