package routes

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/kvrouter/kvrouter/config"
)

// RateLimiter holds per-operation token buckets built from a "rates" object
// with optional gets_rate/gets_burst, sets_rate/sets_burst and
// deletes_rate/deletes_burst fields. An absent rate leaves the operation
// unlimited.
type RateLimiter struct {
	gets    *rate.Limiter
	sets    *rate.Limiter
	deletes *rate.Limiter
}

func NewRateLimiter(n config.Node) (*RateLimiter, error) {
	if !n.IsObject() {
		return nil, config.Errorf("rates is not an object")
	}

	rl := &RateLimiter{}
	var err error
	if rl.gets, err = parseLimiter(n, "gets_rate", "gets_burst"); err != nil {
		return nil, err
	}
	if rl.sets, err = parseLimiter(n, "sets_rate", "sets_burst"); err != nil {
		return nil, err
	}
	if rl.deletes, err = parseLimiter(n, "deletes_rate", "deletes_burst"); err != nil {
		return nil, err
	}

	return rl, nil
}

func parseLimiter(n config.Node, rateField, burstField string) (*rate.Limiter, error) {
	jr := n.Get(rateField)
	if !jr.Exists() {
		return nil, nil
	}
	if !jr.IsNumber() || jr.Float() < 0 {
		return nil, config.Errorf("%s is not a non-negative number", rateField)
	}

	r := jr.Float()
	burst := int(math.Max(1, math.Ceil(r)))
	if jb := n.Get(burstField); jb.Exists() {
		b, err := config.ParseInt(jb, burstField, 1, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		burst = int(b)
	}
	if r == 0 {
		// a zero rate rejects everything; without this the initial burst
		// tokens would still be granted
		burst = 0
	}

	return rate.NewLimiter(rate.Limit(r), burst), nil
}

func (rl *RateLimiter) limiter(op Op) *rate.Limiter {
	switch op {
	case OpSet:
		return rl.sets
	case OpDelete:
		return rl.deletes
	default:
		return rl.gets
	}
}

// Allow reports whether op is within its configured rate.
func (rl *RateLimiter) Allow(op Op) bool {
	l := rl.limiter(op)

	return l == nil || l.Allow()
}

// RateLimitRoute rejects requests exceeding the configured per-operation
// rates and otherwise delegates to its target.
type RateLimitRoute struct {
	target  Handle
	limiter *RateLimiter
}

func NewRateLimitRoute(target Handle, limiter *RateLimiter) *RateLimitRoute {
	return &RateLimitRoute{target: target, limiter: limiter}
}

func (r *RateLimitRoute) Target() Handle { return r.target }

func (r *RateLimitRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	if !r.limiter.Allow(req.Op) {
		return &Reply{Result: ResultError, Value: []byte("rate limited")}, nil
	}

	return r.target.Route(ctx, req)
}
