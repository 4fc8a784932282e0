// Package httpapi serves the operational HTTP surface: health checking
// and the Prometheus scrape endpoint.
package httpapi

import (
	"database/sql"
	"net/http"
)

func NewMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	return mux
}

func NewServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: requestLogger(mux),
	}
}
