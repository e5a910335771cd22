// Package site serves the embedded court page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the court page at the root path. Every other unmatched
// path is a 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("site: nil mux")
	}
	mux.HandleFunc("/", root)
}

func root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		http.NotFound(w, r)
		return
	}
	serveIndex(w, r)
}
