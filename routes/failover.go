package routes

import (
	"context"

	"github.com/dchest/siphash"
)

// failover salt hashing keys, fixed so salted child selection is stable
// across processes.
const (
	failoverSipK0 = 0x0706050403020100
	failoverSipK1 = 0x0f0e0d0c0b0a0908
)

// FailoverRoute tries its children in order until one succeeds. With a salt
// configured, the starting child is derived from hashing the request key with
// the salt, spreading failover load across children.
type FailoverRoute struct {
	children []Handle
	salt     string
}

func NewFailoverRoute(children []Handle, salt string) *FailoverRoute {
	return &FailoverRoute{children: children, salt: salt}
}

func (f *FailoverRoute) Children() []Handle { return f.children }
func (f *FailoverRoute) Salt() string       { return f.salt }

func (f *FailoverRoute) start(key string) int {
	if f.salt == "" {
		return 0
	}

	h := siphash.Hash(failoverSipK0, failoverSipK1, []byte(key+f.salt))

	return int(h % uint64(len(f.children)))
}

func (f *FailoverRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	n := len(f.children)
	start := f.start(req.Key)

	var reply *Reply
	var err error
	for i := 0; i < n; i++ {
		reply, err = f.children[(start+i)%n].Route(ctx, req)
		if err == nil && reply.Result != ResultError {
			return reply, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	return reply, err
}
