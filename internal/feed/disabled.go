package feed

import (
	"context"
	"net/http"
)

// DisabledFeed is a no-op Feed used when no tracker is attached (for
// --disable-feed). The API and presentation layers still run, driven by
// manual commands. Subscribers are tracked so their channels close
// deterministically on Unsubscribe or Close.
type DisabledFeed struct {
	*fanout
}

func NewDisabledFeed() *DisabledFeed {
	return &DisabledFeed{fanout: newFanout()}
}

func (d *DisabledFeed) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledFeed) Close() error {
	d.closeAll()
	return nil
}

func (d *DisabledFeed) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/feed-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("feed disabled"))
	})
}
