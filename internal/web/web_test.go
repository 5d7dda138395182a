package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"edtcal/internal/config"
	"edtcal/internal/feed"
	"edtcal/internal/portal"
	"edtcal/internal/schedule"
)

const lineFixture = `<div class="Ligne"><div class="Debut">08:00</div><div class="Fin">10:00</div><div class="Matiere">Maths</div><div class="Salle">A1</div><div class="Prof"></div></div>`

// newTestServer wires a Server against a fake portal. mutate tweaks the
// config before construction.
func newTestServer(t *testing.T, upstream http.HandlerFunc, mutate func(*config.Config)) *Server {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Portal.BaseURL = srv.URL
	cfg.Portal.TimeoutSeconds = 5
	cfg.ExportWeeks = 1 // keep handler tests to 7 upstream calls
	if mutate != nil {
		mutate(cfg)
	}

	p := portal.NewFetcher(cfg.Portal)
	agg := schedule.NewAggregator(p, feed.NewFetcher(t.TempDir()), nil, time.UTC)
	return NewServer(cfg, agg, p, time.UTC)
}

func servePortalFixture(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(lineFixture))
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:55555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCalendarValidation(t *testing.T) {
	s := newTestServer(t, servePortalFixture, nil)

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodPost, "/calendar?user=jean.dupont", http.StatusMethodNotAllowed},
		{http.MethodGet, "/calendar", http.StatusBadRequest},
		{http.MethodGet, "/calendar?user=dupont", http.StatusBadRequest},
		{http.MethodGet, "/calendar?user=jean.dupont;drop", http.StatusBadRequest},
		{http.MethodGet, "/calendar?user=jean..dupont", http.StatusBadRequest},
		{http.MethodGet, "/calendar?user=jean.dupont2", http.StatusOK},
		{http.MethodGet, "/calendar?user=Jean.DUPONT", http.StatusOK},
	}
	for _, c := range cases {
		rec := doRequest(s, c.method, c.target)
		if rec.Code != c.want {
			t.Errorf("%s %s = %d, want %d (body %s)", c.method, c.target, rec.Code, c.want, rec.Body)
		}
	}
}

func TestCalendarResponseShape(t *testing.T) {
	s := newTestServer(t, servePortalFixture, nil)

	rec := doRequest(s, http.MethodGet, "/calendar?user=jean.dupont")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/calendar; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="schedule-jean.dupont.ics"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "SUMMARY:Maths") {
		t.Errorf("unexpected calendar body:\n%s", body)
	}
}

func TestCalendarServedFromCache(t *testing.T) {
	var calls atomic.Int32
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		servePortalFixture(w, r)
	}, nil)

	doRequest(s, http.MethodGet, "/calendar?user=jean.dupont")
	after := calls.Load()
	doRequest(s, http.MethodGet, "/calendar?user=jean.dupont")
	if got := calls.Load(); got != after {
		t.Errorf("second request refetched upstream (%d -> %d calls)", after, got)
	}
}

func TestProxyValidationAndPassthrough(t *testing.T) {
	s := newTestServer(t, servePortalFixture, nil)

	cases := []struct {
		target string
		want   int
	}{
		{"/proxy?tel=jean.dupont&date=2026-01-05", http.StatusOK},
		{"/proxy?tel=jean.dupont&date=2026-01-05&time=9:30", http.StatusOK},
		{"/proxy?tel=nope&date=2026-01-05", http.StatusBadRequest},
		{"/proxy?tel=jean.dupont&date=05/01/2026", http.StatusBadRequest},
		{"/proxy?tel=jean.dupont&date=2026-01-05&time=25:99", http.StatusBadRequest},
		{"/proxy?tel=jean.dupont", http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := doRequest(s, http.MethodGet, c.target)
		if rec.Code != c.want {
			t.Errorf("GET %s = %d, want %d", c.target, rec.Code, c.want)
		}
	}

	rec := doRequest(s, http.MethodGet, "/proxy?tel=jean.dupont&date=2026-01-05")
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=300") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestProxyUpstreamFailureIs502(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}, nil)

	rec := doRequest(s, http.MethodGet, "/proxy?tel=jean.dupont&date=2026-01-05")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Errorf("expected JSON error body, got %s", rec.Body)
	}
}

func TestProxyRateLimit(t *testing.T) {
	s := newTestServer(t, servePortalFixture, func(cfg *config.Config) {
		cfg.RateLimit.Max = 2
	})

	for i := 0; i < 2; i++ {
		if rec := doRequest(s, http.MethodGet, "/proxy?tel=jean.dupont&date=2026-01-05"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}
	if rec := doRequest(s, http.MethodGet, "/proxy?tel=jean.dupont&date=2026-01-05"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status %d, want 429", rec.Code)
	}

	// A different client IP is not affected.
	req := httptest.NewRequest(http.MethodGet, "/proxy?tel=jean.dupont&date=2026-01-05", nil)
	req.RemoteAddr = "10.9.9.9:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client: status %d", rec.Code)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	s := newTestServer(t, servePortalFixture, nil)

	rec := doRequest(s, http.MethodGet, "/api/schedule?user=jean.dupont&week=-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	var resp scheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Week != -1 || resp.User != "jean.dupont" {
		t.Errorf("echoed params wrong: %+v", resp)
	}
	if len(resp.Schedule) != 7 {
		t.Fatalf("got %d days, want 7", len(resp.Schedule))
	}
	if resp.Schedule[0].Day != "Lundi" {
		t.Errorf("week starts %q, want Lundi", resp.Schedule[0].Day)
	}
	if len(resp.Subjects) != 1 || resp.Subjects[0] != "Maths" {
		t.Errorf("subjects = %v", resp.Subjects)
	}

	if rec := doRequest(s, http.MethodGet, "/api/schedule?user=jean.dupont&week=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad week offset: status %d, want 400", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, servePortalFixture, func(cfg *config.Config) {
		cfg.ProtectedUsers = []string{"jean.dupont"}
		cfg.PIN = "4321"
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	if rec := doRequest(s, http.MethodGet, "/api/login"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET login: status %d, want 405", rec.Code)
	}
	if rec := post(`{"user":"anne.martin","pin":""}`); rec.Code != http.StatusOK {
		t.Errorf("unprotected user: status %d, want 200", rec.Code)
	}
	if rec := post(`{"user":"jean.dupont","pin":"0000"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong PIN: status %d, want 401", rec.Code)
	}
	if rec := post(`{"user":"jean.dupont","pin":"4321"}`); rec.Code != http.StatusOK {
		t.Errorf("correct PIN: status %d, want 200", rec.Code)
	}
	if rec := post(`{bad json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: status %d, want 400", rec.Code)
	}
}
