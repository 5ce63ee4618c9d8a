package simulation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"laserdamage/engine"
)

// Connect opens the engine session for a process. It returns nil when url is
// empty or the engine cannot be reached, and runs then use the analytical
// solver.
func Connect(ctx context.Context, url string, opts engine.Options) engine.Session {
	if url == "" {
		log.Info("no engine configured, using analytical solver")
		return nil
	}
	c, err := engine.Dial(ctx, url, opts)
	if err != nil {
		log.WithError(err).Warn("engine unreachable, using analytical solver")
		return nil
	}
	return c
}
