package routes

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LoggingRoute logs every request and its outcome, then delegates to its
// target.
type LoggingRoute struct {
	target Handle
}

func NewLoggingRoute(target Handle) *LoggingRoute {
	return &LoggingRoute{target: target}
}

func (l *LoggingRoute) Target() Handle { return l.target }

func (l *LoggingRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	reply, err := l.target.Route(ctx, req)

	entry := log.WithFields(log.Fields{
		"op":  req.Op.String(),
		"key": req.Key,
	})
	if err != nil {
		entry.WithError(err).Info("request failed")
	} else {
		entry.WithField("result", reply.Result).Info("request routed")
	}

	return reply, err
}
