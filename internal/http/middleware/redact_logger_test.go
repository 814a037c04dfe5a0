package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs swaps the global logger for a buffer for the duration of fn.
func captureLogs(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()
	fn()
	return buf.String()
}

func serveLogged(t *testing.T, opts RedactOptions, target string, hdr map[string]string) string {
	t.Helper()
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(opts))
	r.GET("/stories", func(c *gin.Context) { c.Status(http.StatusOK) })

	return captureLogs(t, func() {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	})
}

func TestRedactingLogger_ScrubsQuery(t *testing.T) {
	out := serveLogged(t, RedactOptions{},
		"/stories?email=meera@example.com&id=123e4567-e89b-12d3-a456-426614174000&tel=%2B1%20212-555-1212", nil)

	for _, leaked := range []string{"meera@example.com", "123e4567", "555-1212"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log leaked %q:\n%s", leaked, out)
		}
	}
	for _, want := range []string{"[REDACTED:email]", "[REDACTED:id]", "[REDACTED:phone]"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing marker %q:\n%s", want, out)
		}
	}
}

func TestRedactingLogger_MasksHeaders(t *testing.T) {
	out := serveLogged(t, RedactOptions{MaskHeaders: []string{"X-Api-Key"}}, "/stories", map[string]string{
		"Authorization": "Bearer secret-token",
		"X-Api-Key":     "sk-verysecret",
		"Accept":        "application/json",
	})

	if strings.Contains(out, "secret-token") || strings.Contains(out, "sk-verysecret") {
		t.Fatalf("masked header value leaked:\n%s", out)
	}
	if !strings.Contains(out, "application/json") {
		t.Fatalf("benign header should survive:\n%s", out)
	}
}

func TestRedactingLogger_LevelTracksStatus(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	out := captureLogs(t, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	})
	if !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("4xx should log at warn:\n%s", out)
	}
}
