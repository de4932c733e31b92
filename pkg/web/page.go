package web

import (
	_ "embed"
	"log"
	"net/http"
)

//go:embed page.html
var page []byte

// Page returns the static page markup.
func Page() []byte {
	return page
}

// PageHandler serves the static page.
func PageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(page); err != nil {
			log.Printf("Failed to write page: %v", err)
		}
	})
}
