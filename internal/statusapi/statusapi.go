// Package statusapi exposes a read-only HTTP introspection surface over a
// running node (spec §6): neighbors, buffered transactions, committee,
// and performance stats. It never accepts writes.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
)

// Accessor is the read-only view of a node the status API queries.
type Accessor interface {
	Neighbors() []meshtypes.PeerInfo
	Committee() []string
	BufferedTransactions() map[string]meshtypes.BufferedTransaction
	Stats() meshtypes.PerformanceStats
}

// NewRouter builds the chi router exposing n's introspection endpoints.
func NewRouter(n Accessor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/neighbors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.Neighbors())
	})
	r.Get("/committee", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.Committee())
	})
	r.Get("/buffered", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.BufferedTransactions())
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.Stats())
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
