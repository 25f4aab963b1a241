package swagger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"go.yaml.in/yaml/v3"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a registered API reference", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("Then /openapi.yaml serves the document", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Len(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("Then /openapi.json serves the same document as JSON", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", http.NoBody))

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var doc map[string]any
			convey.So(json.Unmarshal(w.Body.Bytes(), &doc), convey.ShouldBeNil)
			convey.So(doc["paths"], convey.ShouldContainKey, "/movement")
		})

		convey.Convey("Then a matching If-None-Match is answered with 304", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))
			tag := w.Header().Get("ETag")
			convey.So(tag, convey.ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			req.Header.Set("If-None-Match", tag)
			w = httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotModified)
			convey.So(w.Body.Len(), convey.ShouldEqual, 0)
		})

		convey.Convey("Then /api-docs serves the ReDoc page", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody))

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, redocBundle)
		})

		convey.Convey("Then other methods are not found", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/openapi.yaml", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		convey.So(yaml.Unmarshal(openAPIYAML, &doc), convey.ShouldBeNil)

		convey.Convey("Then every served route is documented", func() {
			convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")
			for path, method := range map[string]string{
				"/healthz":    "get",
				"/stats":      "get",
				"/score/{id}": "get",
				"/scores":     "get",
				"/series":     "get",
				"/trend":      "get",
				"/movement":   "get",
				"/commits":    "post",
			} {
				convey.So(doc.Paths, convey.ShouldContainKey, path)
				convey.So(doc.Paths[path], convey.ShouldContainKey, method)
			}
		})
	})
}

func TestStringKeys(t *testing.T) {
	convey.Convey("Given YAML with integer keys", t, func() {
		var tree any
		convey.So(yaml.Unmarshal([]byte("responses:\n  200: ok\n  404: [missing]\n"), &tree), convey.ShouldBeNil)

		convey.Convey("Then it encodes as JSON with string keys", func() {
			b, err := json.Marshal(stringKeys(tree))
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"responses":{"200":"ok","404":["missing"]}}`)
		})
	})

	convey.Convey("Given a document that does not parse", t, func() {
		_, err := loadDocument([]byte("paths: [unclosed"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestSwaggerHandlerWithNilMux(t *testing.T) {
	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}
