// Package realtime serves the websocket push transport. A client connects
// with a signed handshake token and receives notification envelopes for its
// user and tenant rooms until the link closes.
package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router mounts the realtime websocket endpoint.
//
// Example:
//
//	svc := realtime.NewService(gw)
//
//	r := chi.NewRouter()
//	r.Mount("/realtime", realtime.Router(svc))
func Router(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", svc.handleSocket)
	return r
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
