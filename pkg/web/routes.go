package web

import (
	"io"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/itohio/envmon/pkg/history"
	"github.com/itohio/envmon/pkg/metrics"
)

const (
	DataPath    = "/datos"
	MetricsPath = "/metrics"
)

// Snapshotter provides the samples served by the data endpoint.
type Snapshotter interface {
	Snapshot() []history.Sample
}

// NewRouter returns the responder's routing table. Every request that does
// not match a route, including a known path with an unsupported method or an
// OPTIONS request that is not a CORS preflight, gets the static page. Access
// lines are written to accessLog unless it is nil.
func NewRouter(h Snapshotter, m *metrics.Metrics, accessLog io.Writer) http.Handler {
	page := m.CountRequests("page", PageHandler())

	data := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(DataHandler(h))

	counted := m.CountRequests("data", data)

	r := mux.NewRouter().SkipClean(true)
	r.Handle(DataPath, counted).Methods(http.MethodGet)
	// Only a CORS preflight reaches the data route with OPTIONS.
	r.Handle(DataPath, counted).Methods(http.MethodOptions).Headers("Access-Control-Request-Method", "")
	r.Handle(MetricsPath, m.CountRequests("metrics", m.Handler())).Methods(http.MethodGet)
	r.NotFoundHandler = page
	r.MethodNotAllowedHandler = page

	var handler http.Handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	if accessLog != nil {
		handler = handlers.CombinedLoggingHandler(accessLog, handler)
	}
	return handler
}

// DataHandler serves the JSON payload of the current history.
func DataHandler(h Snapshotter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := Encode(h.Snapshot())
		if err != nil {
			log.Printf("Failed to serve data: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			log.Printf("Failed to write data: %v", err)
		}
	})
}
