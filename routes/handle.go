/*
Package routes defines the route handle interface that compiled configuration
trees are made of, together with the concrete route types that the factory
composes: destination leaves, hash selection, failover, shadowing, rate
limiting, shard splitting and asynclog wrapping.

A Handle routes one cache request to a reply, delegating to zero or more
children. Handles are shared freely between parent trees; none of them
mutates after construction except where a type documents internal
synchronization.
*/
package routes

import (
	"context"
)

// Op is the cache operation being routed.
type Op int

const (
	OpGet Op = iota
	OpSet
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return "get"
	}
}

// Result is the outcome class of a routed request.
type Result int

const (
	ResultError Result = iota
	ResultNotFound
	ResultFound
	ResultStored
	ResultDeleted
)

// Request is a cache operation travelling down a route tree.
type Request struct {
	Op            Op
	Key           string
	Value         []byte
	RoutingPrefix string
}

// Reply is the outcome of a routed request.
type Reply struct {
	Result Result
	Value  []byte
}

// Handle is a composable routing node, the compiled output of the factory.
type Handle interface {
	Route(ctx context.Context, req *Request) (*Reply, error)
}

// NullRoute ignores the request and replies with a default.
type NullRoute struct{}

func NewNullRoute() *NullRoute { return &NullRoute{} }

func (*NullRoute) Route(context.Context, *Request) (*Reply, error) {
	return &Reply{Result: ResultNotFound}, nil
}

// ErrorRoute replies with an error result carrying a fixed message.
type ErrorRoute struct {
	message string
}

func NewErrorRoute(message string) *ErrorRoute {
	return &ErrorRoute{message: message}
}

func (e *ErrorRoute) Route(context.Context, *Request) (*Reply, error) {
	return &Reply{Result: ResultError, Value: []byte(e.message)}, nil
}
