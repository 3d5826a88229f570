package routes

import (
	"context"
)

// ShadowRoute forwards the request to its normal child and mirrors it to the
// shadow targets, discarding their replies. Shadow failures never affect the
// normal reply.
type ShadowRoute struct {
	normal  Handle
	shadows []Handle
}

func NewShadowRoute(normal Handle, shadows []Handle) *ShadowRoute {
	return &ShadowRoute{normal: normal, shadows: shadows}
}

func (s *ShadowRoute) Normal() Handle    { return s.normal }
func (s *ShadowRoute) Shadows() []Handle { return s.shadows }

func (s *ShadowRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	for _, shadow := range s.shadows {
		shadow.Route(ctx, req)
	}

	return s.normal.Route(ctx, req)
}
