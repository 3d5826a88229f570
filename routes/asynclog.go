package routes

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// AsynclogRoute records deletes that failed downstream under a log category
// name, so they can be replayed asynchronously, and reports them as
// succeeded to the caller. Other operations pass through untouched.
type AsynclogRoute struct {
	target Handle
	name   string
}

func NewAsynclogRoute(target Handle, name string) *AsynclogRoute {
	return &AsynclogRoute{target: target, name: name}
}

func (a *AsynclogRoute) Target() Handle { return a.target }
func (a *AsynclogRoute) Name() string   { return a.name }

func (a *AsynclogRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	reply, err := a.target.Route(ctx, req)
	if req.Op != OpDelete {
		return reply, err
	}

	if err != nil || reply.Result == ResultError {
		log.WithFields(log.Fields{
			"asynclog": a.name,
			"key":      req.Key,
		}).Debug("spooling failed delete for async replay")

		return &Reply{Result: ResultDeleted}, nil
	}

	return reply, err
}
