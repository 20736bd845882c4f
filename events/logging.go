package events

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

// loggingPublisher decorates a Publisher with logging
type loggingPublisher struct {
	logger log.Logger
	next   Publisher
}

// NewLoggingPublisher returns a new instance of a logging Publisher
func NewLoggingPublisher(logger log.Logger, p Publisher) Publisher {
	return &loggingPublisher{
		logger: logger,
		next:   p,
	}
}

func (p *loggingPublisher) Publish(ctx context.Context, event Event) (err error) {
	defer func(begin time.Time) {
		p.logger.Log(
			"method", "publish",
			"id", event.ID,
			"kind", event.Kind,
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return p.next.Publish(ctx, event)
}
