package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Str("session_id", "s1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line["message"] != "hello" || line["session_id"] != "s1" || line["level"] != "debug" {
		t.Fatalf("line=%v", line)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("warn", "console", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("output=%q", buf.String())
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := New("chatty", "json", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected bad level error")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected bad format error")
	}
}

func TestGin_LogsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log, _ := New("info", "json", &buf)
	r := gin.New()
	r.Use(Gin(log))
	r.GET("/api/calls/:session_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls/abc", nil))

	out := buf.String()
	if !strings.Contains(out, `"route":"/api/calls/:session_id"`) || !strings.Contains(out, `"status":404`) {
		t.Fatalf("log=%q", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected warn level for 404: %q", out)
	}
}
