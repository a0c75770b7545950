package httpapi

import "github.com/sal-openlab/datafusion-server/internal/session"

// handlers holds the shared Deps every route handler is a method of;
// grouping them this way keeps route registration in routes.go to one
// line per route instead of a constructor per resource the way the
// teacher splits AccountHandler/LedgerHandler/etc., since this
// server's route count doesn't warrant the split.
type handlers struct {
	deps *Deps
}

func (h *handlers) session(id string) (*session.Context, error) {
	return h.deps.Sessions.Get(id)
}
