package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectScript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"before body end",
			"<html><body><p>hi</p></body></html>",
			"<html><body><p>hi</p>" + scriptTag + "</body></html>",
		},
		{
			"uppercase tag",
			"<HTML><BODY>x</BODY></HTML>",
			"<HTML><BODY>x" + scriptTag + "</BODY></HTML>",
		},
		{
			"body tag inside script text is ignored",
			`<body><script>var s = "</body>";</script></body>`,
			`<body><script>var s = "</body>";</script>` + scriptTag + `</body>`,
		},
		{
			"fragment without body",
			"<p>partial</p>",
			"<p>partial</p>" + scriptTag,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InjectScript([]byte(tt.in))))
		})
	}
}

func serveWith(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	injectLiveReload(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInjectorRewritesHTMLResponses(t *testing.T) {
	rec := serveWith(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", "27")
		_, _ = w.Write([]byte("<body>hello</body>"))
	}, "/index.html")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Equal(t, "<body>hello"+scriptTag+"</body>", rec.Body.String())
}

func TestInjectorLeavesOtherResponsesAlone(t *testing.T) {
	t.Run("non-html path", func(t *testing.T) {
		rec := serveWith(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("</body>"))
		}, "/css/main.css")
		assert.Equal(t, "</body>", rec.Body.String())
	})
	t.Run("non-html content type", func(t *testing.T) {
		rec := serveWith(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"a":"</body>"}`))
		}, "/")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, `{"a":"</body>"}`, rec.Body.String())
	})
	t.Run("not found", func(t *testing.T) {
		rec := serveWith(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}, "/missing.html")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), scriptTag)
	})
	t.Run("oversized page", func(t *testing.T) {
		page := "<body>" + strings.Repeat("x", maxInjectSize) + "</body>"
		rec := serveWith(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page[:100]))
			_, _ = w.Write([]byte(page[100:]))
		}, "/big.html")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, page, rec.Body.String())
	})
}
