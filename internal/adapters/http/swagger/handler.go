// Package swagger serves the OpenAPI document and a ReDoc page for it.
package swagger

import (
	"context"
	"net/http"
)

const (
	docsPath = "/api-docs"
	specPath = "/openapi.yaml"
)

// Register mounts the ReDoc page at /api-docs and the raw document at
// /openapi.yaml. It panics on a nil mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}
	mux.HandleFunc("GET "+docsPath, serve("text/html; charset=utf-8", []byte(redocPage)))
	mux.HandleFunc("GET "+specPath, serve("application/yaml; charset=utf-8", OpenAPI))
}

func serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(body)
	}
}

const redocPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>The People's Court API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('` + specPath + `', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
