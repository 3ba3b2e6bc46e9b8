package httpapi

import (
	"context"
	"net/http"
	"time"
)

// DefaultDrainGrace is how long before the shutdown deadline in-flight
// requests are canceled. It leaves room for killed compiler processes to be
// reaped and their responses written.
const DefaultDrainGrace = 10 * time.Second

// DrainServer stops srv from accepting requests and waits for in-flight ones.
// cancel must cancel the context srv.BaseContext returns. It is called once
// only grace remains before ctx's deadline, so running compilations are
// killed instead of outliving the process, and again when DrainServer
// returns.
func DrainServer(ctx context.Context, srv *http.Server, cancel context.CancelFunc, grace time.Duration) error {
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		wait := time.Until(deadline) - grace
		if wait < 0 {
			wait = 0
		}
		timer := time.AfterFunc(wait, cancel)
		defer timer.Stop()
	}

	return srv.Shutdown(ctx)
}
