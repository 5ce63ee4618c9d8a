package engine

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"laserdamage/model"
)

var (
	requestsOnce sync.Once
	requests     metric.Int64Counter
)

func requestCounter() metric.Int64Counter {
	requestsOnce.Do(func() {
		var err error
		requests, err = otel.Meter("laserdamage/engine").Int64Counter("engine.requests",
			metric.WithDescription("Engine solve requests by outcome"))
		if err != nil {
			log.WithError(err).Warn("engine request counter unavailable")
		}
	})
	return requests
}

func countRequest(ctx context.Context, err error) {
	c := requestCounter()
	if c == nil {
		return
	}
	outcome := "solved"
	if err != nil {
		outcome = model.KindOf(err)
	}
	c.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
