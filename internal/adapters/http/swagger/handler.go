// Package swagger serves the API reference for the analytics endpoints.
package swagger

import (
	"context"
	"net/http"
)

// redocBundle is the hosted ReDoc standalone bundle.
const redocBundle = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

// Register attaches the API reference routes to mux:
//
//	GET /api-docs      ReDoc page
//	GET /openapi.yaml  the document as written
//	GET /openapi.json  the same document as JSON
//
// Both document routes answer If-None-Match with 304. Register panics if mux
// is nil or the embedded document does not parse.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	doc, err := loadDocument(openAPIYAML)
	if err != nil {
		panic(err)
	}

	mux.HandleFunc("/api-docs", getOnly(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	}))
	mux.HandleFunc("/openapi.yaml", getOnly(serveTagged("application/yaml; charset=utf-8", doc.yamlETag, doc.yaml)))
	mux.HandleFunc("/openapi.json", getOnly(serveTagged("application/json; charset=utf-8", doc.jsonETag, doc.json)))
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}

func serveTagged(contentType, tag string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Health Score API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="` + redocBundle + `"></script>
    <script>Redoc.init('/openapi.json', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
