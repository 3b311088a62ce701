package testutil

import (
	"errors"
	"net/http"
	"testing"
)

func TestAssertStatusCodePasses(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestAssertNoErrorPasses(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertErrorPasses(t *testing.T) {
	AssertError(t, errors.New("boom"))
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodGet, "/api/latest?sensor=gps")
	if req.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", req.Method)
	}
	if got := req.URL.Query().Get("sensor"); got != "gps" {
		t.Errorf("sensor param = %q, want gps", got)
	}
}

func TestNewTestRecorder(t *testing.T) {
	rec := NewTestRecorder()
	rec.WriteHeader(http.StatusTeapot)
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
