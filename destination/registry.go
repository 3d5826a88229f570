/*
Package destination implements the process-wide registry of backend
destinations. The registry deduplicates live connection targets on
(endpoint identity, transport kind, timeout, qos), so that every route tree
compiled while a key is live shares the same handle.

The registry is the only piece of shared mutable state that outlives a single
configuration compilation pass. It is safe for concurrent lookup and insert,
and it never invalidates a handle still referenced by a compiled tree;
teardown happens in Close at router shutdown.
*/
package destination

import (
	"fmt"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/kvrouter/kvrouter/network"
)

// TransportKind selects the transport implementation for a destination.
type TransportKind int

const (
	// TransportAsyncClient is the default network transport.
	TransportAsyncClient TransportKind = iota

	// TransportThrift is used for pools with the thrift protocol.
	TransportThrift
)

func (k TransportKind) String() string {
	if k == TransportThrift {
		return "thrift"
	}

	return "async"
}

// Conn is the opaque transport-layer connection object owned by a
// destination. Connection lifecycle and wire framing live behind it.
type Conn interface {
	Close() error
}

// TransportFactory constructs the connection object for a new destination.
// A nil factory leaves destinations unconnected, which is what configuration
// validation and tests want.
type TransportFactory func(kind TransportKind, ap *network.AccessPoint, timeout time.Duration, qosClass, qosPath uint64) (Conn, error)

// Key is the dedup key of a destination.
type Key struct {
	Endpoint string
	Kind     TransportKind
	Timeout  time.Duration
	QoSClass uint64
	QoSPath  uint64
}

// Destination is a live, shared connection target. Route trees hold
// non-owning references; the registry owns the lifetime.
type Destination struct {
	key  Key
	ap   *network.AccessPoint
	conn Conn

	requests metrics.Counter

	mu                     sync.Mutex
	shortestTimeout        time.Duration
	shortestConnectTimeout time.Duration
}

func (d *Destination) Key() Key                         { return d.key }
func (d *Destination) AccessPoint() *network.AccessPoint { return d.ap }
func (d *Destination) Conn() Conn                       { return d.conn }

// UpdateShortestTimeout retains the minimum timeouts ever requested by any
// route referencing this destination. A destination shared by routes with
// different timeout needs must not apply a looser timeout than the strictest
// caller.
func (d *Destination) UpdateShortestTimeout(connectTimeout, timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if connectTimeout > 0 && (d.shortestConnectTimeout == 0 || connectTimeout < d.shortestConnectTimeout) {
		d.shortestConnectTimeout = connectTimeout
	}
	if timeout > 0 && (d.shortestTimeout == 0 || timeout < d.shortestTimeout) {
		d.shortestTimeout = timeout
	}
}

// ShortestTimeouts returns the retained minimum (connect, request) timeouts.
func (d *Destination) ShortestTimeouts() (connect, request time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.shortestConnectTimeout, d.shortestTimeout
}

// MarkRequest counts a request routed to this destination.
func (d *Destination) MarkRequest() {
	d.requests.Inc(1)
}

// Requests returns the number of requests routed to this destination.
func (d *Destination) Requests() int64 {
	return d.requests.Count()
}

// Registry deduplicates destinations process-wide.
type Registry struct {
	transports TransportFactory
	metrics    metrics.Registry

	mu sync.RWMutex
	m  map[Key]*Destination
}

func NewRegistry(transports TransportFactory) *Registry {
	return &Registry{
		transports: transports,
		metrics:    metrics.NewRegistry(),
		m:          make(map[Key]*Destination),
	}
}

// Emplace returns the destination for the given key, creating it on first
// use. Repeated calls with equivalent keys return the same handle without
// duplicating connections.
func (r *Registry) Emplace(kind TransportKind, ap *network.AccessPoint, timeout time.Duration, qosClass, qosPath uint64) (*Destination, error) {
	key := Key{
		Endpoint: ap.String(),
		Kind:     kind,
		Timeout:  timeout,
		QoSClass: qosClass,
		QoSPath:  qosPath,
	}

	r.mu.RLock()
	d, ok := r.m[key]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.m[key]; ok {
		return d, nil
	}

	var conn Conn
	if r.transports != nil {
		var err error
		conn, err = r.transports(kind, ap, timeout, qosClass, qosPath)
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", key.Endpoint, err)
		}
	}

	d = &Destination{
		key:      key,
		ap:       ap,
		conn:     conn,
		requests: metrics.GetOrRegisterCounter("destination."+key.Endpoint+".requests", r.metrics),
	}
	r.m[key] = d

	return d, nil
}

// Len returns the number of live destinations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.m)
}

// Metrics exposes the per-destination counters.
func (r *Registry) Metrics() metrics.Registry { return r.metrics }

// Close tears down every destination. Only the router shutdown path may call
// this; compiled trees must not be routed to afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, d := range r.m {
		if d.conn != nil {
			if err := d.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(r.m, key)
	}

	return firstErr
}
