package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	var ua string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2*time.Second, false)
	out := chk.Check(context.Background(), s.URL)
	if out.Status != domain.StatusAvailable {
		t.Fatalf("want available, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
	if ua != DefaultUserAgent {
		t.Fatalf("want browser user agent, got %q", ua)
	}
}

func TestHTTPChecker_Status500IsUnavailable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, false).Check(context.Background(), s.URL)
	if out.Status != domain.StatusUnavailable {
		t.Fatalf("want unavailable, got %+v", out)
	}
	if out.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", out.StatusCode)
	}
}

func TestHTTPChecker_Non200SuccessIsUnavailable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer s.Close()

	out := NewHTTPChecker(2*time.Second, false).Check(context.Background(), s.URL)
	if out.Status != domain.StatusUnavailable || out.StatusCode != 204 {
		t.Fatalf("want unavailable/204, got %+v", out)
	}
}

func TestHTTPChecker_TimeoutIsError(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPChecker(50*time.Millisecond, false).Check(context.Background(), s.URL)
	if out.Status != domain.StatusError {
		t.Fatalf("want error due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestHTTPChecker_RefusedAndMalformedAreError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := s.URL
	s.Close() // nothing listens there anymore

	chk := NewHTTPChecker(time.Second, false)
	for _, target := range []string{addr, "://broken", "ftp://example.invalid/"} {
		if out := chk.Check(context.Background(), target); out.Status != domain.StatusError {
			t.Fatalf("%q: want error, got %+v", target, out)
		}
	}
}

func TestHTTPChecker_TLSVerification(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	if out := NewHTTPChecker(time.Second, false).Check(context.Background(), s.URL); out.Status != domain.StatusError {
		t.Fatalf("self-signed cert must fail verification, got %+v", out)
	}
	if out := NewHTTPChecker(time.Second, true).Check(context.Background(), s.URL); out.Status != domain.StatusAvailable {
		t.Fatalf("insecure checker should accept self-signed cert, got %+v", out)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		code int
		err  error
		want domain.Status
	}{
		{200, nil, domain.StatusAvailable},
		{201, nil, domain.StatusUnavailable},
		{404, nil, domain.StatusUnavailable},
		{0, errors.New("dial"), domain.StatusError},
		{200, errors.New("late"), domain.StatusError},
	}
	for _, c := range cases {
		if got := Classify(c.code, c.err); got != c.want {
			t.Fatalf("Classify(%d,%v)=%v want %v", c.code, c.err, got, c.want)
		}
	}
}
