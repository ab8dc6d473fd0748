package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRecovery_PanicBecomes500(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestID())
	e.Use(Recovery(zerolog.New(&buf)))
	e.GET("/boom", func(echo.Context) error { panic("vial counter gone") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "panic recovered") || !strings.Contains(out, "vial counter gone") {
		t.Errorf("panic not logged: %s", out)
	}
	if strings.Contains(rec.Body.String(), "vial counter gone") {
		t.Error("panic detail must not reach the client")
	}
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Logger(zerolog.New(&buf)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/refused", func(c echo.Context) error { return c.NoContent(http.StatusUnprocessableEntity) })
	e.GET("/broken", func(c echo.Context) error { return c.NoContent(http.StatusInternalServerError) })

	cases := []struct {
		path, level string
	}{
		{"/ok", "info"},
		{"/refused", "warn"},
		{"/broken", "error"},
	}
	for _, tc := range cases {
		buf.Reset()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if !strings.Contains(buf.String(), `"level":"`+tc.level+`"`) {
			t.Errorf("%s: expected level %q in %s", tc.path, tc.level, buf.String())
		}
	}
}

func TestRequestID_HonorsCallerHeader(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, requestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "caller-supplied")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Body.String() != "caller-supplied" {
		t.Errorf("expected the caller's id to survive, got %q", rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) != "caller-supplied" {
		t.Errorf("expected the id echoed back, got %q", rec.Header().Get(requestIDHeader))
	}

	// Without a header one is minted.
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
}
