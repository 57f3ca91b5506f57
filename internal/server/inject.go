package server

import (
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const (
	scriptTag     = `<script src="/livereload.js"></script>`
	maxInjectSize = 512 * 1024
)

// InjectScript inserts the live reload <script> before the closing body tag, or
// appends it when the document has none.
func InjectScript(page []byte) []byte {
	at := injectionPoint(page)
	out := make([]byte, 0, len(page)+len(scriptTag))
	out = append(out, page[:at]...)
	out = append(out, scriptTag...)
	return append(out, page[at:]...)
}

// injectionPoint returns the offset of the last </body> tag, or len(page).
func injectionPoint(page []byte) int {
	z := html.NewTokenizer(bytes.NewReader(page))
	offset, point := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		n := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				point = offset
			}
		}
		offset += n
	}
	if point < 0 {
		return len(page)
	}
	return point
}

// injectLiveReload rewrites HTML responses to load the live reload client.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !(p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")) {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML response up to maxInjectSize; larger or non-HTML
// responses pass through untouched.
type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	started     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.writeHeader()
	}
}

func (i *injector) writeHeader() {
	if !i.wroteHeader {
		i.wroteHeader = true
		i.ResponseWriter.WriteHeader(i.status)
	}
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.started {
		i.started = true
		ct := i.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			i.passthrough = true
		}
	}
	if !i.passthrough && len(i.buf)+len(data) > maxInjectSize {
		i.passthrough = true
		i.Header().Del("Content-Length")
		i.writeHeader()
		if _, err := i.ResponseWriter.Write(i.buf); err != nil {
			return 0, err
		}
		i.buf = nil
	}
	if i.passthrough {
		i.writeHeader()
		return i.ResponseWriter.Write(data)
	}
	i.buf = append(i.buf, data...)
	return len(data), nil
}

func (i *injector) finalize() {
	if i.passthrough {
		i.writeHeader()
		return
	}
	if len(i.buf) == 0 || i.status != http.StatusOK {
		i.writeHeader()
		_, _ = i.ResponseWriter.Write(i.buf)
		return
	}
	i.Header().Del("Content-Length")
	i.writeHeader()
	_, _ = i.ResponseWriter.Write(InjectScript(i.buf))
}
