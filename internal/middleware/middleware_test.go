package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"cadventory/internal/logging"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	logging.SetLevel(logging.LevelDebug)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		logging.SetLevel(logging.LevelInfo)
	})
	return &buf
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("new writer = %+v", rw)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want first value 404", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 || rw.bytesWritten != 5 {
		t.Errorf("Write() = %d, %v; bytesWritten = %d", n, err, rw.bytesWritten)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"esc\x1b[31mred", "esc[31mred"},
		{"nul\x00byte", "nulbyte"},
		{"tab\tkept", "tab\tkept"},
		{"del\x7f", "del"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		status  int
		config  LoggingConfig
		want    string
		skipped bool
	}{
		{"regular request", "/api/models", http.StatusOK, DefaultLoggingConfig(), "[INFO]", false},
		{"server error", "/api/models", http.StatusInternalServerError, DefaultLoggingConfig(), "[ERROR]", false},
		{"metrics skipped", "/metrics", http.StatusOK, DefaultLoggingConfig(), "", true},
		{"health skipped", "/health", http.StatusOK, DefaultLoggingConfig(), "", true},
		{"health logged when enabled", "/health", http.StatusOK, LoggingConfig{LogHealthChecks: true}, "[INFO]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			h := Logger(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("ok"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path+"?q=a%0Ab", http.NoBody)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			out := buf.String()
			if tt.skipped {
				if out != "" {
					t.Errorf("expected no log output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) || !strings.Contains(out, tt.path) {
				t.Errorf("log output %q does not contain %q and %q", out, tt.want, tt.path)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5678", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompression(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		accept      string
		compressed  bool
	}{
		{"large json", strings.Repeat(`{"k":"v"}`, 300), "application/json; charset=utf-8", "gzip, deflate", true},
		{"small json", `{"k":"v"}`, "application/json", "gzip", false},
		{"thumbnail", strings.Repeat("\x89PNG", 600), "image/png", "gzip", false},
		{"client without gzip", strings.Repeat("x", 4096), "text/plain", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusCreated)
				// Several writes exercise the buffering path.
				for i := 0; i < len(tt.body); i += 500 {
					end := i + 500
					if end > len(tt.body) {
						end = len(tt.body)
					}
					w.Write([]byte(tt.body[i:end]))
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/models", http.NoBody)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusCreated {
				t.Errorf("status = %d, want 201", rec.Code)
			}

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.compressed {
				t.Fatalf("compressed = %v, want %v", gotGzip, tt.compressed)
			}

			body := rec.Body.Bytes()
			if gotGzip {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatal(err)
				}
				body, err = io.ReadAll(zr)
				if err != nil {
					t.Fatal(err)
				}
			}
			if string(body) != tt.body {
				t.Errorf("body length %d, want %d", len(body), len(tt.body))
			}
		})
	}
}

func TestMetrics_RouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))

	var seen string
	r.HandleFunc("/api/models/{id}", func(w http.ResponseWriter, req *http.Request) {
		seen = routeTemplate(req)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models/12345", http.NoBody))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if seen != "/api/models/{id}" {
		t.Errorf("routeTemplate() = %q, want /api/models/{id}", seen)
	}
}

func TestRouteTemplate_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody)
	if got := routeTemplate(req); got != "unmatched" {
		t.Errorf("routeTemplate() = %q, want unmatched", got)
	}
}
