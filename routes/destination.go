package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/kvrouter/kvrouter/destination"
)

// Sender is the request capability a connected transport exposes. The
// registry stores connections as opaque values; a destination route only
// requires this much of them.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Reply, error)
}

// DestinationRoute is a leaf bound to one physical connection target.
type DestinationRoute struct {
	dest              *destination.Destination
	poolName          string
	indexInPool       int
	poolStatIndex     int32
	timeout           time.Duration
	keepRoutingPrefix bool
}

func NewDestinationRoute(
	dest *destination.Destination,
	poolName string,
	indexInPool int,
	poolStatIndex int32,
	timeout time.Duration,
	keepRoutingPrefix bool,
) *DestinationRoute {
	return &DestinationRoute{
		dest:              dest,
		poolName:          poolName,
		indexInPool:       indexInPool,
		poolStatIndex:     poolStatIndex,
		timeout:           timeout,
		keepRoutingPrefix: keepRoutingPrefix,
	}
}

func (d *DestinationRoute) Destination() *destination.Destination { return d.dest }
func (d *DestinationRoute) PoolName() string                      { return d.poolName }
func (d *DestinationRoute) Index() int                            { return d.indexInPool }
func (d *DestinationRoute) PoolStatIndex() int32                  { return d.poolStatIndex }
func (d *DestinationRoute) Timeout() time.Duration                { return d.timeout }
func (d *DestinationRoute) KeepRoutingPrefix() bool               { return d.keepRoutingPrefix }

func (d *DestinationRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	d.dest.MarkRequest()

	if !d.keepRoutingPrefix && req.RoutingPrefix != "" {
		stripped := *req
		stripped.RoutingPrefix = ""
		req = &stripped
	}

	sender, ok := d.dest.Conn().(Sender)
	if !ok {
		return nil, fmt.Errorf("destination %s: transport not connected", d.dest.Key().Endpoint)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return sender.Send(ctx, req)
}
