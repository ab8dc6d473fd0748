package rules

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestCodeOf(t *testing.T) {
	v := New(AgeNotMet, "too young")
	if CodeOf(v) != AgeNotMet {
		t.Fatalf("expected %s, got %s", AgeNotMet, CodeOf(v))
	}
	if CodeOf(fmt.Errorf("wrapped: %w", v)) != AgeNotMet {
		t.Fatal("CodeOf must see through wrapping")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no code")
	}
}

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{New(IntervalNotMet, "x"), http.StatusUnprocessableEntity},
		{New(DoseLimitExceeded, "x"), http.StatusUnprocessableEntity},
		{New(InvalidTransition, "x"), http.StatusConflict},
		{New(AlreadyResolved, "x"), http.StatusConflict},
		{New(Contention, "x"), http.StatusConflict},
		{New(ConfigurationError, "x"), http.StatusInternalServerError},
		{NotFound("vaccine", "abc"), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		he, ok := HTTPError(tc.err).(*echo.HTTPError)
		if !ok {
			t.Fatalf("%v: expected *echo.HTTPError", tc.err)
		}
		if he.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, he.Code)
		}
	}
}

func TestHTTPError_ContentionIsRetryable(t *testing.T) {
	he := HTTPError(New(Contention, "busy")).(*echo.HTTPError)
	body, ok := he.Message.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected body type %T", he.Message)
	}
	if retryable, _ := body["retryable"].(bool); !retryable {
		t.Fatal("contention responses must carry retryable=true")
	}
}
