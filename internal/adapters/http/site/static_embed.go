package site

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed static/index.html
var indexPage []byte

// builtAt stands in for the page's modification time so conditional GETs
// revalidate after each deploy.
var builtAt = time.Now() //nolint:gochecknoglobals // process start time

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", builtAt, bytes.NewReader(indexPage))
}
