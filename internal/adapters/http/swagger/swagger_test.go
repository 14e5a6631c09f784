package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func serve(mux *http.ServeMux, method, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	convey.Convey("Given the docs routes on a mux", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("When the OpenAPI document is fetched", func() {
			w := serve(mux, http.MethodGet, "/openapi.yaml")

			convey.Convey("Then it is served as YAML with an ETag", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Header().Get("ETag"), convey.ShouldEqual, documentETag(OpenAPI))
				convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
			})

			convey.Convey("And a revalidation with that ETag is not modified", func() {
				again := serve(mux, http.MethodGet, "/openapi.yaml", "If-None-Match", w.Header().Get("ETag"))
				convey.So(again.Code, convey.ShouldEqual, http.StatusNotModified)
				convey.So(again.Body.Len(), convey.ShouldEqual, 0)
			})

			convey.Convey("And a stale ETag gets the document again", func() {
				again := serve(mux, http.MethodGet, "/openapi.yaml", "If-None-Match", `"stale"`)
				convey.So(again.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the docs page is fetched", func() {
			w := serve(mux, http.MethodGet, "/api-docs")

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "vauva API")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
		})

		convey.Convey("When a docs route is written to", func() {
			for _, path := range []string{"/api-docs", "/openapi.yaml"} {
				w := serve(mux, http.MethodPost, path)
				convey.So(w.Code, convey.ShouldEqual, http.StatusMethodNotAllowed)
				convey.So(w.Header().Get("Allow"), convey.ShouldEqual, "GET, HEAD")
			}
		})

		convey.Convey("Then the document describes the saving contract", func() {
			doc := string(OpenAPI)
			convey.So(doc, convey.ShouldContainSubstring, "/api/hearts:")
			convey.So(doc, convey.ShouldContainSubstring, "Idempotency-Key")
			convey.So(doc, convey.ShouldContainSubstring, "Idempotent-Replayed")
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}
