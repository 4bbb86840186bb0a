// Package notifications exposes the notification store over HTTP for the
// client's poll path: a page-bounded listing and the mark-read mutation.
package notifications

import (
	"github.com/go-chi/chi/v5"
)

// Router mounts the notification HTTP API. Every route requires a valid
// bearer token.
//
// Example:
//
//	svc := notifications.NewService(manager, verifier)
//
//	r := chi.NewRouter()
//	r.Mount("/notifications", notifications.Router(svc))
func Router(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Use(svc.withIdentity)

	r.Get("/", svc.handleList)
	r.Patch("/", svc.handleMarkRead)

	return r
}
